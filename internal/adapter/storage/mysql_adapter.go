package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/salestock/internal/core/domain"
)

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

type txKey struct{}

// WithTx runs fn inside a transaction stashed in the context. All adapter
// methods pick the transaction up from there, so a whole batch of mutations
// commits or rolls back as one unit. Nested calls join the outer tx.
func (m *MySQLAdapter) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	txCtx := context.WithValue(ctx, txKey{}, tx)
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func txFromContext(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKey{}).(*sql.Tx)
	return tx
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (m *MySQLAdapter) conn(ctx context.Context) execer {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return m.db
}

// DecrementIfEnough is the oversell guard: the predicate and the subtraction
// are evaluated by MySQL in a single UPDATE, so concurrent callers can never
// drive the counter below zero.
func (m *MySQLAdapter) DecrementIfEnough(ctx context.Context, productID int64, quantity int) (bool, error) {
	if quantity < 0 {
		return false, domain.ErrInvalidQuantity
	}

	result, err := m.conn(ctx).ExecContext(ctx, `
		UPDATE inventory
		SET quantity = quantity - ?, updated_at = NOW()
		WHERE product_id = ? AND quantity >= ?`,
		quantity, productID, quantity,
	)
	if err != nil {
		return false, fmt.Errorf("decrement inventory: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("decrement inventory: %w", err)
	}
	return rows == 1, nil
}

func (m *MySQLAdapter) GetItem(ctx context.Context, productID int64) (domain.InventoryItem, error) {
	var item domain.InventoryItem
	err := m.conn(ctx).QueryRowContext(ctx, `
		SELECT product_id, quantity, updated_at
		FROM inventory WHERE product_id = ?`, productID,
	).Scan(&item.ProductID, &item.Quantity, &item.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return domain.InventoryItem{}, domain.ErrItemNotFound
	}
	if err != nil {
		return domain.InventoryItem{}, fmt.Errorf("query inventory: %w", err)
	}
	return item, nil
}

func (m *MySQLAdapter) ListItems(ctx context.Context, offset, limit int) ([]domain.InventoryItem, error) {
	rows, err := m.conn(ctx).QueryContext(ctx, `
		SELECT product_id, quantity, updated_at
		FROM inventory ORDER BY product_id LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	defer rows.Close()

	var items []domain.InventoryItem
	for rows.Next() {
		var item domain.InventoryItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan inventory: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (m *MySQLAdapter) SeedItem(ctx context.Context, productID int64, quantity int) error {
	item, err := domain.NewInventoryItem(productID, quantity)
	if err != nil {
		return err
	}

	_, err = m.conn(ctx).ExecContext(ctx, `
		INSERT INTO inventory (product_id, quantity, updated_at)
		VALUES (?, ?, NOW())
		ON DUPLICATE KEY UPDATE quantity = VALUES(quantity), updated_at = NOW()`,
		item.ProductID, item.Quantity,
	)
	if err != nil {
		return fmt.Errorf("seed inventory: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) CreateSale(ctx context.Context, sale *domain.Sale) error {
	conn := m.conn(ctx)

	result, err := conn.ExecContext(ctx, `
		INSERT INTO sales (status, total_amount, total_cost, total_profit, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sale.Status, sale.TotalAmount, sale.TotalCost, sale.TotalProfit,
		sale.CreatedAt, sale.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}
	sale.ID = id

	for _, it := range sale.Items {
		_, err = conn.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, product_id, quantity, unit_price, unit_cost)
			VALUES (?, ?, ?, ?, ?)`,
			sale.ID, it.ProductID, it.Quantity, it.UnitPrice, it.UnitCost,
		)
		if err != nil {
			return fmt.Errorf("insert sale item: %w", err)
		}
	}
	return nil
}

func (m *MySQLAdapter) GetSaleForUpdate(ctx context.Context, saleID int64) (domain.Sale, error) {
	conn := m.conn(ctx)

	var sale domain.Sale
	err := conn.QueryRowContext(ctx, `
		SELECT id, status, total_amount, total_cost, total_profit, created_at, updated_at
		FROM sales WHERE id = ? FOR UPDATE`, saleID,
	).Scan(&sale.ID, &sale.Status, &sale.TotalAmount, &sale.TotalCost,
		&sale.TotalProfit, &sale.CreatedAt, &sale.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return domain.Sale{}, domain.ErrSaleNotFound
	}
	if err != nil {
		return domain.Sale{}, fmt.Errorf("query sale: %w", err)
	}

	rows, err := conn.QueryContext(ctx, `
		SELECT product_id, quantity, unit_price, unit_cost
		FROM sale_items WHERE sale_id = ? ORDER BY id`, saleID,
	)
	if err != nil {
		return domain.Sale{}, fmt.Errorf("query sale items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it domain.SaleItem
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.UnitPrice, &it.UnitCost); err != nil {
			return domain.Sale{}, fmt.Errorf("scan sale item: %w", err)
		}
		sale.Items = append(sale.Items, it)
	}
	return sale, rows.Err()
}

func (m *MySQLAdapter) UpdateSale(ctx context.Context, sale domain.Sale) error {
	_, err := m.conn(ctx).ExecContext(ctx, `
		UPDATE sales
		SET status = ?, total_amount = ?, total_cost = ?, total_profit = ?, updated_at = ?
		WHERE id = ?`,
		sale.Status, sale.TotalAmount, sale.TotalCost, sale.TotalProfit,
		sale.UpdatedAt, sale.ID,
	)
	if err != nil {
		return fmt.Errorf("update sale: %w", err)
	}
	return nil
}
