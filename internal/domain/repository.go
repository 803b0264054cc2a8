package domain

import "context"

// RollFilter narrows ListRolls. Zero values are ignored.
type RollFilter struct {
	Status         RollStatus
	SKUID          string
	BatchID        string
	SupplierID     string
	GoodsReceiptID string
	ParentRollID   string
	Limit          int
	Offset         int
}

// RollRepository persists roll aggregates. Writes also store the aggregate's
// pending domain events in the outbox as part of the same atomic unit.
type RollRepository interface {
	// Insert stores new rolls at version 1. A duplicate id or roll number
	// returns ErrConcurrentModification.
	Insert(ctx context.Context, rolls ...*Roll) error
	// Update writes the roll if the stored version still equals roll.Version,
	// then advances roll.Version. A stale version returns ErrConcurrentModification.
	Update(ctx context.Context, roll *Roll) error

	FindByID(ctx context.Context, id string) (*Roll, error)
	FindByIDs(ctx context.Context, ids []string) ([]*Roll, error)
	FindByBarcode(ctx context.Context, barcode string) (*Roll, error)
	// FindAvailable returns Mapped rolls of the SKU at least minLength long, oldest first
	FindAvailable(ctx context.Context, skuID string, minLength float64) ([]*Roll, error)
	FindAllocatedTo(ctx context.Context, orderLineRef string) ([]*Roll, error)
	FindByGoodsReceipt(ctx context.Context, goodsReceiptID string) ([]*Roll, error)
	List(ctx context.Context, filter RollFilter) ([]*Roll, error)
	// MaxSequence returns the highest sequence stored under sequenceKey, or 0
	MaxSequence(ctx context.Context, sequenceKey string) (int, error)
}

// BatchRepository persists batches
type BatchRepository interface {
	Save(ctx context.Context, batch *Batch) error
	FindByID(ctx context.Context, id string) (*Batch, error)
}

// LandedCostRepository persists landed cost entries
type LandedCostRepository interface {
	Save(ctx context.Context, entry *LandedCostEntry) error
	FindByID(ctx context.Context, id string) (*LandedCostEntry, error)
	FindByReceivingEvent(ctx context.Context, receivingEventID string) ([]*LandedCostEntry, error)
}

// CatalogRepository is the read side of the catalog masters. SKUs are the only
// entity written here.
type CatalogRepository interface {
	FindSupplier(ctx context.Context, id string) (*Supplier, error)
	FindGSMByName(ctx context.Context, name string) (*GSM, error)
	FindQualityByName(ctx context.Context, name string) (*Quality, error)
	FindProduct(ctx context.Context, categoryID, gsmID, qualityID string) (*Product, error)
	FindSKU(ctx context.Context, id string) (*SKU, error)
	FindSKUForProduct(ctx context.Context, productID string, width Width) (*SKU, error)
	SaveSKU(ctx context.Context, sku *SKU) error
}

// TransactionManager runs fn as one atomic unit: every write made through the
// repositories with the ctx passed to fn commits together or not at all.
// fn may run more than once and must not keep state between attempts.
type TransactionManager interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
