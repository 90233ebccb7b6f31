package domain

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckpointKeyOrdering(t *testing.T) {
	keys := []string{
		CheckpointKey("inst-1", 100),
		CheckpointKey("inst-1", 2),
		CheckpointKey("inst-1", 11),
		CheckpointKey("inst-1", 1),
	}
	sort.Strings(keys)

	// Zero-padding keeps lexicographic order numeric.
	assert.Equal(t, CheckpointKey("inst-1", 1), keys[0])
	assert.Equal(t, CheckpointKey("inst-1", 2), keys[1])
	assert.Equal(t, CheckpointKey("inst-1", 11), keys[2])
	assert.Equal(t, CheckpointKey("inst-1", 100), keys[3])
}

func TestCheckpointScanPrefixCoversOnlyOneInstance(t *testing.T) {
	prefix := CheckpointScanPrefix("inst-1")

	assert.True(t, strings.HasPrefix(CheckpointKey("inst-1", 5), prefix))
	assert.False(t, strings.HasPrefix(CheckpointKey("inst-10", 5), prefix))
	assert.False(t, strings.HasPrefix(InstanceHeadKey("inst-1"), prefix))
}

func TestKeyNamespacesAreDisjoint(t *testing.T) {
	keys := []string{
		InstanceHeadKey("x"),
		CheckpointKey("x", 1),
		CorrelationKey("x"),
		DecisionKey("x"),
	}

	seen := map[string]bool{}
	for _, k := range keys {
		assert.False(t, seen[k], k)
		seen[k] = true
	}
}
