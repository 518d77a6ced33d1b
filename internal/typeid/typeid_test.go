package typeid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAssetIDValidates(t *testing.T) {
	id := NewAssetID()
	assert.True(t, strings.HasPrefix(id, PrefixAsset+"_"))
	assert.NoError(t, Validate(id, PrefixAsset))
}

func TestValidateRejectsWrongPrefix(t *testing.T) {
	err := Validate(NewItemID(), PrefixAsset)
	assert.ErrorContains(t, err, "expected prefix")
}

func TestValidateRejectsGarbage(t *testing.T) {
	assert.Error(t, Validate("not-an-id", PrefixAsset))
}
