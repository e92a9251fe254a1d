package pdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const identityCMap = `/CIDInit /ProcSet findresource begin
12 dict begin
begincmap
/CMapName /Adobe-Identity-UCS def
/CMapType 2 def
1 begincodespacerange
<0000> <FFFF>
endcodespacerange
2 beginbfchar
<0003> <0020>
<0011> <00E9>
endbfchar
2 beginbfrange
<0024> <0026> <0041>
<0030> <0031> [<0053> <0075>]
endbfrange
endcmap
CMapName currentdict /CMap defineresource pop
end
end`

func TestParseCMap(t *testing.T) {
	t.Parallel()

	cm, err := parseCMap([]byte(identityCMap))
	require.NoError(t, err)
	assert.Equal(t, 2, cm.codeLen)
	assert.Equal(t, " ", cm.chars[0x03])
	assert.Equal(t, "é", cm.chars[0x11])
	assert.Equal(t, "A", cm.chars[0x24])
	assert.Equal(t, "C", cm.chars[0x26])
	assert.Equal(t, "S", cm.chars[0x30])
	assert.Equal(t, "u", cm.chars[0x31])
}

func TestFontDecoders(t *testing.T) {
	t.Parallel()

	cm, err := parseCMap([]byte(identityCMap))
	require.NoError(t, err)

	composite := compositeFont(cm)
	assert.Equal(t, "SuA CB", composite.decode([]byte{0, 0x30, 0, 0x31, 0, 0x24, 0, 0x03, 0, 0x26, 0, 0x25}))

	plain := simpleFont(nil)
	assert.Equal(t, "Phil.", plain.decode([]byte("Phil.")))

	// Unknown two-byte codes are dropped rather than guessed.
	assert.Equal(t, "A", compositeFont(cm).decode([]byte{0x7f, 0x7f, 0, 0x24}))
	assert.Equal(t, 2, compositeFont(nil).codeLen)
}

func TestUTF16BE(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "fi", utf16BE([]byte{0, 'f', 0, 'i'}))
	assert.Equal(t, "😀", utf16BE([]byte{0xD8, 0x3D, 0xDE, 0x00}))
}
