package domain

import "fmt"

const (
	InstancePrefix    = "instance:head:"
	CheckpointPrefix  = "instance:checkpoint:"
	CorrelationPrefix = "correlation:"
	DecisionPrefix    = "decision:"
)

// InstanceHeadKey builds the key for the head row of an instance, which
// tracks the latest checkpoint version.
func InstanceHeadKey(id string) string {
	return fmt.Sprintf("%s%s", InstancePrefix, id)
}

// CheckpointKey builds the key for one immutable checkpoint version. The
// version is zero-padded so lexicographic prefix scans return versions in
// numeric order.
func CheckpointKey(id string, version int64) string {
	return fmt.Sprintf("%s%s:%012d", CheckpointPrefix, id, version)
}

// CheckpointScanPrefix is the prefix covering all checkpoints of an instance.
func CheckpointScanPrefix(id string) string {
	return fmt.Sprintf("%s%s:", CheckpointPrefix, id)
}

// CorrelationKey builds the key for the correlation entry of an external ref.
func CorrelationKey(externalRef string) string {
	return fmt.Sprintf("%s%s", CorrelationPrefix, externalRef)
}

// DecisionKey builds the key for the decision record of an instance.
func DecisionKey(instanceID string) string {
	return fmt.Sprintf("%s%s", DecisionPrefix, instanceID)
}
