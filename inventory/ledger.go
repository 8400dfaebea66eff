package inventory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/warp/watchcraft/generic"
)

const entityName = "inventory item"

// Ledger applies the inventory rules on top of a Repository.
type Ledger struct {
	repo  Repository
	clock generic.Clock
}

func NewLedger(repo Repository, clock generic.Clock) *Ledger {
	return &Ledger{repo: repo, clock: clock}
}

// =============================================================================
// COMMANDS
// =============================================================================

// AddItem validates and stores a new item. Duplicate codes are rejected.
func (l *Ledger) AddItem(ctx context.Context, in NewItem) (Item, error) {
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	in.Brand = strings.TrimSpace(in.Brand)
	in.Model = strings.TrimSpace(in.Model)
	if err := generic.Validate(in); err != nil {
		return Item{}, err
	}
	if !in.Price.IsPositive() {
		return Item{}, generic.Invalid("price", "must be greater than 0")
	}

	existing, err := l.repo.ListItems(ctx)
	if err != nil {
		return Item{}, err
	}
	if in.Code == "" {
		in.Code = NextCode(in.Brand, existing)
	} else if err := checkCodeFree(existing, in.Code, ""); err != nil {
		return Item{}, err
	}

	now := l.clock.Now()
	item := Item{
		ID:          generic.NewID(),
		Code:        in.Code,
		Brand:       in.Brand,
		Model:       in.Model,
		Price:       in.Price,
		Quantity:    in.Quantity,
		Status:      StatusFor(in.Quantity),
		Description: strings.TrimSpace(in.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := l.repo.SaveItem(ctx, item); err != nil {
		return Item{}, fmt.Errorf("save item: %w", err)
	}
	return item, nil
}

// UpdateItem replaces the editable fields. Status follows the new quantity.
func (l *Ledger) UpdateItem(ctx context.Context, id string, in ItemUpdate) (Item, error) {
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	in.Brand = strings.TrimSpace(in.Brand)
	in.Model = strings.TrimSpace(in.Model)
	if err := generic.Validate(in); err != nil {
		return Item{}, err
	}
	if !in.Price.IsPositive() {
		return Item{}, generic.Invalid("price", "must be greater than 0")
	}

	item, err := l.repo.GetItem(ctx, id)
	if err != nil {
		return Item{}, err
	}
	if in.Code != item.Code {
		existing, err := l.repo.ListItems(ctx)
		if err != nil {
			return Item{}, err
		}
		if err := checkCodeFree(existing, in.Code, id); err != nil {
			return Item{}, err
		}
	}

	item.Code = in.Code
	item.Brand = in.Brand
	item.Model = in.Model
	item.Price = in.Price
	item.Quantity = in.Quantity
	item.Status = StatusFor(in.Quantity)
	item.Description = strings.TrimSpace(in.Description)
	item.UpdatedAt = l.clock.Now()
	if err := l.repo.SaveItem(ctx, item); err != nil {
		return Item{}, fmt.Errorf("save item: %w", err)
	}
	return item, nil
}

// DeleteItem removes an item. Callers check sale references first.
func (l *Ledger) DeleteItem(ctx context.Context, id string) (Item, error) {
	item, err := l.repo.GetItem(ctx, id)
	if err != nil {
		return Item{}, err
	}
	if err := l.repo.DeleteItem(ctx, id); err != nil {
		return Item{}, fmt.Errorf("delete item: %w", err)
	}
	return item, nil
}

// DecreaseQuantity removes amount units, clamping at zero. Returns the
// updated item and the number of units actually removed.
func (l *Ledger) DecreaseQuantity(ctx context.Context, id string, amount int) (Item, int, error) {
	if amount <= 0 {
		return Item{}, 0, generic.Invalid("quantity", "must be greater than 0")
	}
	item, err := l.repo.GetItem(ctx, id)
	if err != nil {
		return Item{}, 0, err
	}
	removed := min(amount, item.Quantity)
	item.Quantity -= removed
	if item.Quantity == 0 {
		item.Status = StatusSold
	}
	item.UpdatedAt = l.clock.Now()
	if err := l.repo.SaveItem(ctx, item); err != nil {
		return Item{}, 0, fmt.Errorf("save item: %w", err)
	}
	return item, removed, nil
}

// IncreaseQuantity adds amount units. A sold item becomes available again.
func (l *Ledger) IncreaseQuantity(ctx context.Context, id string, amount int) (Item, error) {
	if amount <= 0 {
		return Item{}, generic.Invalid("quantity", "must be greater than 0")
	}
	item, err := l.repo.GetItem(ctx, id)
	if err != nil {
		return Item{}, err
	}
	item.Quantity += amount
	if item.Quantity > 0 && item.Status == StatusSold {
		item.Status = StatusAvailable
	}
	item.UpdatedAt = l.clock.Now()
	if err := l.repo.SaveItem(ctx, item); err != nil {
		return Item{}, fmt.Errorf("save item: %w", err)
	}
	return item, nil
}

// =============================================================================
// QUERIES
// =============================================================================

func (l *Ledger) FindByID(ctx context.Context, id string) (Item, error) {
	return l.repo.GetItem(ctx, id)
}

// List returns all items ordered by code.
func (l *Ledger) List(ctx context.Context) ([]Item, error) {
	items, err := l.repo.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Code < items[j].Code })
	return items, nil
}

// FindAvailable returns items that can be sold right now.
func (l *Ledger) FindAvailable(ctx context.Context) ([]Item, error) {
	items, err := l.List(ctx)
	if err != nil {
		return nil, err
	}
	return generic.Filter(items, func(it Item) bool {
		return it.Quantity > 0 && it.Status == StatusAvailable
	}), nil
}

// LowStock returns in-stock items with quantity at or below threshold.
func (l *Ledger) LowStock(ctx context.Context, threshold int) ([]Item, error) {
	items, err := l.List(ctx)
	if err != nil {
		return nil, err
	}
	return generic.Filter(items, func(it Item) bool {
		return it.Quantity > 0 && it.Quantity <= threshold
	}), nil
}

// Search matches the query against code, brand, model, price, quantity,
// status and description.
func (l *Ledger) Search(ctx context.Context, query string) ([]Item, error) {
	items, err := l.List(ctx)
	if err != nil {
		return nil, err
	}
	return generic.Filter(items, func(it Item) bool {
		return generic.Matches(query, it.Code, it.Brand, it.Model, it.Price.String(),
			strconv.Itoa(it.Quantity), string(it.Status), it.Description)
	}), nil
}

// GenerateCode previews the code AddItem would assign for brand.
func (l *Ledger) GenerateCode(ctx context.Context, brand string) (string, error) {
	if strings.TrimSpace(brand) == "" {
		return "", generic.Invalid("brand", "is required")
	}
	items, err := l.repo.ListItems(ctx)
	if err != nil {
		return "", err
	}
	return NextCode(brand, items), nil
}

func (l *Ledger) Stats(ctx context.Context) (Stats, error) {
	items, err := l.repo.ListItems(ctx)
	if err != nil {
		return Stats{}, err
	}
	var s Stats
	for _, it := range items {
		s.TotalItems++
		switch it.Status {
		case StatusAvailable:
			s.Available++
		case StatusSold:
			s.Sold++
		}
		if it.Quantity > 0 && it.Quantity <= LowStockThreshold {
			s.LowStock++
		}
		s.TotalValue = s.TotalValue.Add(it.Value())
	}
	return s, nil
}

func checkCodeFree(items []Item, code, selfID string) error {
	for _, it := range items {
		if it.ID != selfID && strings.EqualFold(it.Code, code) {
			return &generic.DuplicateError{Entity: entityName, Field: "code", Value: code}
		}
	}
	return nil
}
