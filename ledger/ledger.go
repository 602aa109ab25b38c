package ledger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"givekiosk/donation"
)

var ErrNotFound = errors.New("donation not found")

// Config holds ledger settings.
type Config struct {
	Path string `yaml:"path"` // SQLite file, e.g. /var/lib/givekiosk/ledger.db
}

// Donation is one completed payment as stored on the kiosk.
type Donation struct {
	ID             string    `gorm:"primaryKey;size:64;not null" json:"id"`
	OrderID        string    `gorm:"size:64;index" json:"order_id"`
	TransactionID  string    `gorm:"size:64;index" json:"transaction_id"`
	AmountCents    int64     `gorm:"not null" json:"amount_cents"`
	IsCustomAmount bool      `gorm:"not null;default:false" json:"is_custom_amount"`
	CatalogItemID  string    `gorm:"size:64" json:"catalog_item_id,omitempty"`
	ReceiptSent    bool      `gorm:"not null;default:false" json:"receipt_sent"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time `json:"-"`
}

// Amount returns the donation in major units.
func (d Donation) Amount() decimal.Decimal {
	return decimal.New(d.AmountCents, -2)
}

// Filter narrows List.
type Filter struct {
	Since time.Time
	Limit int // 0 means 100
}

// Totals summarizes donations since a point in time.
type Totals struct {
	Count       int64           `json:"count"`
	Amount      decimal.Decimal `json:"amount"`
	ReceiptSent int64           `json:"receipts_sent"`
}

// Ledger records donations in a local SQLite database.
type Ledger struct {
	db *gorm.DB
}

// Open opens or creates the ledger database at path.
func Open(path string) (*Ledger, error) {
	if path == "" {
		return nil, fmt.Errorf("ledger path not configured")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	// SQLite allows a single writer.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("ledger handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Donation{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Record stores a completed donation. It implements donation.Recorder.
func (l *Ledger) Record(ctx context.Context, d donation.Donation) error {
	row := Donation{
		ID:             d.ID,
		OrderID:        d.OrderID,
		TransactionID:  d.TransactionID,
		AmountCents:    d.Amount.Shift(2).Round(0).IntPart(),
		IsCustomAmount: d.IsCustomAmount,
		CatalogItemID:  d.CatalogItemID,
		CreatedAt:      d.CreatedAt,
	}
	if err := l.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert donation %s: %w", d.ID, err)
	}
	return nil
}

// MarkReceiptSent flags the donation's receipt as delivered.
func (l *Ledger) MarkReceiptSent(ctx context.Context, id string) error {
	res := l.db.WithContext(ctx).Model(&Donation{}).
		Where("id = ?", id).
		Update("receipt_sent", true)
	if res.Error != nil {
		return fmt.Errorf("mark receipt sent %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns one donation.
func (l *Ledger) Get(ctx context.Context, id string) (*Donation, error) {
	var d Donation
	err := l.db.WithContext(ctx).Where("id = ?", id).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get donation %s: %w", id, err)
	}
	return &d, nil
}

// List returns donations newest first.
func (l *Ledger) List(ctx context.Context, f Filter) ([]Donation, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	q := l.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if !f.Since.IsZero() {
		q = q.Where("created_at >= ?", f.Since)
	}

	var out []Donation
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list donations: %w", err)
	}
	return out, nil
}

// Totals sums donations created at or after since.
func (l *Ledger) Totals(ctx context.Context, since time.Time) (Totals, error) {
	var row struct {
		Count int64
		Cents int64
		Sent  int64
	}
	err := l.db.WithContext(ctx).Model(&Donation{}).
		Select("COUNT(*) AS count, COALESCE(SUM(amount_cents), 0) AS cents, COALESCE(SUM(CASE WHEN receipt_sent THEN 1 ELSE 0 END), 0) AS sent").
		Where("created_at >= ?", since).
		Scan(&row).Error
	if err != nil {
		return Totals{}, fmt.Errorf("sum donations: %w", err)
	}
	return Totals{
		Count:       row.Count,
		Amount:      decimal.New(row.Cents, -2),
		ReceiptSent: row.Sent,
	}, nil
}

// Close releases the database.
func (l *Ledger) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
