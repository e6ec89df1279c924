// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package pll drives the ZL30159 clock synchronizer over SPI and exposes its
// configuration registers as Modbus holding registers.
package pll

import "fmt"

// Access describes how a chip register may be used.
type Access int

const (
	ReadOnly Access = iota
	ReadWrite
	// StickyRead registers latch events until cleared. They are cleared
	// before every read so the value reflects the current state.
	StickyRead
)

func (a Access) String() string {
	switch a {
	case ReadOnly:
		return "ro"
	case ReadWrite:
		return "rw"
	case StickyRead:
		return "sticky"
	default:
		return fmt.Sprintf("access(%d)", int(a))
	}
}

const (
	// BankBoundary is the first address served by the upper register page.
	BankBoundary = 0x80

	AddressStickyLock = 0x0D
	AddressPage       = 0x7F
)

// Register is one entry of the chip register map. Multi-byte registers
// occupy consecutive chip addresses and are transferred MSB first.
type Register struct {
	Name    string
	Address byte
	Size    int // bytes, 1 to 4
	Access  Access
	Default uint32
}

// Words returns the number of 16-bit Modbus registers r is exposed as.
func (r Register) Words() int {
	return (r.Size + 1) / 2
}

// Max returns the largest value r can hold.
func (r Register) Max() uint32 {
	return uint32(uint64(1)<<(8*uint(r.Size)) - 1)
}

// Registers is the register map of the ZL30159, ordered by address.
var Registers = []Register{
	{"id_reg", 0x00, 1, ReadOnly, 0x09},
	{"ref_fail_isr_status", 0x02, 1, StickyRead, 0x00},
	{"dpll_isr_status", 0x03, 1, StickyRead, 0x00},
	{"ref_fail_isr_mask", 0x04, 1, ReadWrite, 0x00},
	{"dpll_isr_mask", 0x05, 1, ReadWrite, 0x00},
	{"ref_mon_fail", 0x07, 1, StickyRead, 0x00},
	{"ref_mon_fail_mask", 0x09, 1, ReadWrite, 0x66},
	{"ref_config", 0x0A, 1, ReadWrite, 0x00},
	{"gst_disqualif_time", 0x0B, 1, ReadWrite, 0xAA},
	{"gst_qualif_time", 0x0C, 1, ReadWrite, 0x55},
	{"sticky_r_lock", 0x0D, 1, ReadWrite, 0x00},
	{"ref_base_freq", 0x10, 2, ReadWrite, 0x61A8},
	{"ref_freq_multiple", 0x12, 2, ReadWrite, 0x03E8},
	{"ref_ratio_m_n", 0x14, 4, ReadWrite, 0x00010001},
	{"dpll_ctrl", 0x30, 1, ReadWrite, 0x0C},
	{"dpll_mode_refsel", 0x33, 1, ReadWrite, 0x03},
	{"dpll_ref_fail_mask", 0x34, 1, ReadWrite, 0x87},
	{"dpll_hold_lock_fail", 0x44, 1, StickyRead, 0x00},
	{"phasememlimit_ref", 0x47, 1, ReadWrite, 0x0A},
	{"scm_cfm_limit_ref", 0x4B, 1, ReadWrite, 0x55},
	{"dpll_config", 0x4F, 1, ReadWrite, 0x31},
	{"synth_base_freq", 0x50, 2, ReadWrite, 0x61A8},
	{"synth_freq_multiple", 0x52, 2, ReadWrite, 0x0EA6},
	{"synth_ratio_m_n", 0x54, 4, ReadWrite, 0x00010001},
	{"output_synthesizer_en", 0x71, 1, ReadWrite, 0x01},
	{"dpll_lock_selection", 0x72, 1, ReadWrite, 0xAA},
	{"central_freq_offset", 0x73, 4, ReadWrite, 0x046AAAAB},
	{"synth_filter_sel", 0x77, 1, ReadWrite, 0x00},
	{"synth_filter_phase_shift", 0x78, 1, ReadWrite, 0x00},
	{"page_register", 0x7F, 1, ReadWrite, 0x00},
	{"synth_post_div_a", 0x86, 3, ReadWrite, 0x00003C},
	{"synth_post_div_b", 0x89, 3, ReadWrite, 0x00000C},
	{"hp_cmos_en", 0xB1, 1, ReadWrite, 0x00},
	{"synth_stop_clk", 0xB8, 1, ReadWrite, 0x00},
	{"sync_fail_flag_status", 0xB9, 1, StickyRead, 0x00},
	{"clear_sync_fail_flag", 0xBA, 1, ReadWrite, 0x00},
	{"phase_shift_s_postdiv_a", 0xBF, 2, ReadWrite, 0x00},
	{"phase_shift_s_postdiv_b", 0xC1, 2, ReadWrite, 0x00},
	{"xo_or_crystal_sel", 0xC3, 1, ReadWrite, 0x00},
	{"chip_revision", 0xC6, 1, ReadWrite, 0x03},
	{"gpio_function_pin0", 0xE0, 1, ReadWrite, 0x00},
	{"gpio_function_pin1", 0xE1, 1, ReadWrite, 0x00},
	{"gpio_function_pin2", 0xE2, 1, ReadWrite, 0x70},
	{"gpio_function_pin3", 0xE3, 1, ReadWrite, 0x00},
	{"gpio_function_pin4", 0xE4, 1, ReadWrite, 0x00},
	{"gpio_function_pin5", 0xE5, 1, ReadWrite, 0x00},
	{"gpio_function_pin6", 0xE6, 1, ReadWrite, 0x72},
	{"dpll_ctrl2", 0xEC, 1, ReadWrite, 0x00},
	{"dpll_holdpull", 0xED, 1, ReadWrite, 0x07},
	{"pfm_mask_ho", 0xF4, 1, ReadWrite, 0xF0},
	{"pfm_mask_ref_fail", 0xF5, 1, ReadWrite, 0x00},
	{"pfm_range_ref", 0xF7, 1, ReadWrite, 0x33},
}

var byAddress = func() map[byte]int {
	m := make(map[byte]int, len(Registers))
	for i, r := range Registers {
		m[r.Address] = i
	}
	return m
}()

// Find returns the register that starts at address.
func Find(address byte) (Register, bool) {
	i, ok := byAddress[address]
	if !ok {
		return Register{}, false
	}
	return Registers[i], true
}
