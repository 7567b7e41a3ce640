package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wireSample = `import "lib/math" as m
from "./util" import a, b
x = -1 + 2 * 3
items = [1, 2.5, "three", true, nil]
conf = {"name": "demo", "n": len(items)}
def add(a, b)
  return a + b
end
def noop()
  return
end
if x > 3 and not false
  print("big")
elsif x == 3
  print("three")
else
  print(conf.name, items[0])
end
while x > 0
  x = x - 1
  break
end
for v in items
  continue
end
items[0] = 9
conf.n = 1
output conf
`

func TestWireRoundTrip(t *testing.T) {
	mod, err := ParseSource(wireSample, "lib/sample.bolt")
	require.NoError(t, err)

	back, err := FromWire(ToWire(mod))
	require.NoError(t, err)
	assert.Equal(t, mod, back)
}

func TestWireEmptyModule(t *testing.T) {
	mod, err := ParseSource("# only a comment\n", "empty.bolt")
	require.NoError(t, err)
	back, err := FromWire(ToWire(mod))
	require.NoError(t, err)
	assert.Equal(t, mod, back)
}

func TestWireRejectsMalformed(t *testing.T) {
	_, err := FromWire(&WireNode{Kind: "expr"})
	assert.Error(t, err)

	_, err = FromWire(&WireNode{Kind: "module", Blocks: [][]*WireNode{{{Kind: "bogus"}}}})
	assert.EqualError(t, err, `wire: unknown statement kind "bogus"`)

	_, err = FromWire(&WireNode{Kind: "module", Blocks: [][]*WireNode{{{Kind: "setindex", Line: 2, Col: 1}}}})
	assert.EqualError(t, err, "wire: setindex node at 2:1 has 0 children, want 3")
}
