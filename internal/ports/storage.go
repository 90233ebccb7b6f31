package ports

type StoragePort interface {
	Get(key string) (value []byte, exists bool, err error)
	Put(key string, value []byte) error
	Delete(key string) error
	Exists(key string) (bool, error)

	BatchWrite(ops []WriteOp) error

	ListByPrefix(prefix string) ([]KeyValue, error)
	CountPrefix(prefix string) (count int, err error)

	// RunInTransaction executes fn inside a single storage transaction.
	// A commit-time conflict with a concurrent transaction on the same
	// keys surfaces as a domain transaction-conflict error.
	RunInTransaction(fn func(tx Transaction) error) error

	Close() error
}

type Transaction interface {
	Get(key string) (value []byte, exists bool, err error)
	Put(key string, value []byte) error
	Delete(key string) error
	Exists(key string) (bool, error)
}

type WriteOp struct {
	Type  OpType
	Key   string
	Value []byte
}

type KeyValue struct {
	Key   string
	Value []byte
}

type OpType int

const (
	OpPut OpType = iota
	OpDelete
)
