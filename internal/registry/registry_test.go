package registry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"FlowTagger/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	reg, err := Parse(strings.NewReader("Decimal,Keyword\n6,TCP\n17,UDP\n"), "protocol.csv")
	require.NoError(t, err)

	kw, ok := reg.Lookup("6")
	assert.True(t, ok)
	assert.Equal(t, "tcp", kw)
	kw, ok = reg.Lookup("17")
	assert.True(t, ok)
	assert.Equal(t, "udp", kw)
	assert.Equal(t, 2, reg.Len())

	_, ok = reg.Lookup("1")
	assert.False(t, ok)
}

func TestParse_SkipsInvalidRows(t *testing.T) {
	table := strings.Join([]string{
		"Decimal,Keyword,Protocol,IPv6 Extension Header,Reference",
		"1,ICMP,Internet Control Message,,[RFC792]",
		" 6 , TCP ,Transmission Control,,[RFC9293]",
		"143-252,,Unassigned,,[Internet_Assigned_Numbers_Authority]",
		"-1,NEG,,,",
		"abc,XYZ,,,",
		"6,DUP,,,",
		"253",
	}, "\n")

	reg, err := Parse(strings.NewReader(table), "iana.csv")
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())

	kw, _ := reg.Lookup("6")
	assert.Equal(t, "tcp", kw, "first row for a decimal wins")
	_, ok := reg.Lookup("143-252")
	assert.False(t, ok)
	_, ok = reg.Lookup("253")
	assert.False(t, ok, "row without a keyword is skipped")
}

func TestParse_ColumnsInAnyOrder(t *testing.T) {
	reg, err := Parse(strings.NewReader("Keyword,Decimal\nUDP,17\n"), "reordered.csv")
	require.NoError(t, err)
	kw, ok := reg.Lookup("17")
	assert.True(t, ok)
	assert.Equal(t, "udp", kw)
}

func TestParse_Errors(t *testing.T) {
	cases := map[string]string{
		"missing keyword column": "Decimal,Name\n6,TCP\n",
		"lowercase header":       "decimal,keyword\n6,TCP\n",
		"no valid rows":          "Decimal,Keyword\nx,TCP\n",
		"empty file":             "",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			reg, err := Parse(strings.NewReader(body), name)
			require.Error(t, err)
			assert.Nil(t, reg)
			assert.True(t, errors.IsConfig(err))
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "protocol.csv")
	require.NoError(t, os.WriteFile(path, []byte("Decimal,Keyword\n6,TCP\n"), 0644))

	reg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Len())

	_, err = Load(filepath.Join(t.TempDir(), "absent.csv"))
	assert.True(t, errors.IsConfig(err))
}

func TestLoad_ReturnsFreshRegistry(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.csv")
	second := filepath.Join(dir, "b.csv")
	require.NoError(t, os.WriteFile(first, []byte("Decimal,Keyword\n6,TCP\n"), 0644))
	require.NoError(t, os.WriteFile(second, []byte("Decimal,Keyword\n17,UDP\n"), 0644))

	a, err := Load(first)
	require.NoError(t, err)
	b, err := Load(second)
	require.NoError(t, err)

	_, ok := b.Lookup("6")
	assert.False(t, ok, "loading is not additive")
	_, ok = a.Lookup("6")
	assert.True(t, ok)
}

func TestBuiltin(t *testing.T) {
	reg := Builtin()

	kw, ok := reg.Lookup("6")
	assert.True(t, ok)
	assert.Equal(t, "tcp", kw)
	kw, ok = reg.Lookup("17")
	assert.True(t, ok)
	assert.Equal(t, "udp", kw)
	assert.Greater(t, reg.Len(), 10)
}

func TestFromMap(t *testing.T) {
	reg := FromMap(map[string]string{"6": "TCP"})
	kw, _ := reg.Lookup("6")
	assert.Equal(t, "tcp", kw)
}
