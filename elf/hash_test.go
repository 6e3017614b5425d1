package elf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashSymbolName(t *testing.T) {
	assert.Equal(t, uint32(0), HashSymbolName(""))
	assert.Equal(t, uint32(0x61), HashSymbolName("a"))
	assert.Equal(t, uint32(0x672), HashSymbolName("ab"))
	assert.Equal(t, uint32(0x6783), HashSymbolName("abc"))
}

func TestHashSymbolNameClearsHighNibble(t *testing.T) {
	for _, name := range []string{"printf", "_ZN4long7mangled6symbolE", "__libc_start_main"} {
		assert.Less(t, HashSymbolName(name), uint32(0x10000000), name)
	}
}
