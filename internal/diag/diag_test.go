package diag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiags(t *testing.T) {
	var d Diags
	d.Add(0x10, KindUnresolved, "FFoo: unknown property")
	d.Addf(0x20, KindCycle, "%s <-> %s", "A", "B")

	var other Diags
	other.Add(0x30, KindUnresolved, "FBar")
	d.Merge(&other)
	d.Merge(nil)

	assert.Equal(t, 3, d.Len())
	assert.Equal(t, 2, d.Count(KindUnresolved))
	assert.Equal(t, 0, d.Count(KindEmptyPackage))
	assert.Equal(t, "[cycle] 0x20: A <-> B", d.Items()[1].String())
}
