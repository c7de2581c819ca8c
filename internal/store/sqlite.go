package store

import (
	"database/sql"
	"fmt"
	"sort"

	"github.com/mattn/go-sqlite3"

	"spotengine/internal/apperrors"
	"spotengine/internal/decimal"
	"spotengine/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	trader_name     TEXT    NOT NULL,
	base            TEXT    NOT NULL,
	quote           TEXT    NOT NULL,
	side            INTEGER NOT NULL,
	base_amount     TEXT    NOT NULL,
	fragments_rate  TEXT    NOT NULL,
	execution_rate  TEXT    NOT NULL,
	activation_time INTEGER NOT NULL DEFAULT 0,
	fulfill_time    INTEGER NOT NULL DEFAULT 0,
	exchange_id     INTEGER NOT NULL DEFAULT -1,
	status          INTEGER NOT NULL,
	taken_home      TEXT    NOT NULL,
	fee             TEXT    NOT NULL DEFAULT '0.00000000',
	fee_asset       TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_orders_status_pair ON orders(status, base, quote);

CREATE TABLE IF NOT EXISTS fragments (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	base            TEXT    NOT NULL,
	quote           TEXT    NOT NULL,
	base_amount     TEXT    NOT NULL,
	target_rate     TEXT    NOT NULL,
	side            INTEGER NOT NULL,
	taken_home      TEXT    NOT NULL,
	spawning_order  INTEGER NOT NULL DEFAULT -1,
	composed_order  INTEGER NOT NULL DEFAULT -1
);
CREATE INDEX IF NOT EXISTS idx_fragments_composed_order ON fragments(composed_order);
CREATE INDEX IF NOT EXISTS idx_fragments_match ON fragments(base, quote, side, target_rate, composed_order);

CREATE TABLE IF NOT EXISTS balances (
	id                    INTEGER PRIMARY KEY AUTOINCREMENT,
	time                  INTEGER NOT NULL,
	base_balance          TEXT    NOT NULL,
	quote_balance         TEXT    NOT NULL,
	base_buy_potential    TEXT    NOT NULL,
	quote_buy_potential   TEXT    NOT NULL,
	base_sell_potential   TEXT    NOT NULL,
	quote_sell_potential  TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS launch_count (
	id    INTEGER PRIMARY KEY CHECK (id = 1),
	count INTEGER NOT NULL
);
`

// SQLiteStore implements Store on top of database/sql and
// github.com/mattn/go-sqlite3, in WAL mode, through a single open
// connection shared by every caller.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates (if needed) and opens a SQLite-backed Store at path.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorage, "store.Open", err)
	}
	// The single writer goroutine model means one open connection is
	// sufficient and avoids SQLITE_BUSY from overlapping writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperrors.Wrap(apperrors.KindStorage, "store.Open: schema", err)
	}

	if _, err := db.Exec(`INSERT OR IGNORE INTO launch_count (id, count) VALUES (1, 0)`); err != nil {
		db.Close()
		return nil, apperrors.Wrap(apperrors.KindStorage, "store.Open: seed launch_count", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func sideValue(s model.Side) int { return int(s) }

func scanOrder(row interface {
	Scan(dest ...interface{}) error
}) (model.Order, error) {
	var o model.Order
	var side, status int
	var baseAmount, fragmentsRate, executionRate, takenHome, fee string
	err := row.Scan(
		&o.ID, &o.TraderName, &o.Base, &o.Quote, &side, &baseAmount, &fragmentsRate,
		&executionRate, &o.ActivationTime, &o.FulfillTime, &o.ExchangeID, &status,
		&takenHome, &fee, &o.FeeAsset,
	)
	if err != nil {
		return model.Order{}, err
	}
	o.Side = model.Side(side)
	o.Status = model.Status(status)
	o.BaseAmount = decimal.MustParse(baseAmount)
	o.FragmentsRate = decimal.MustParse(fragmentsRate)
	o.ExecutionRate = decimal.MustParse(executionRate)
	o.TakenHome = decimal.MustParse(takenHome)
	o.Fee = decimal.MustParse(fee)
	return o, nil
}

const orderColumns = `id, trader_name, base, quote, side, base_amount, fragments_rate, execution_rate, activation_time, fulfill_time, exchange_id, status, taken_home, fee, fee_asset`

func (s *SQLiteStore) InsertOrder(o *model.Order) error {
	res, err := s.db.Exec(
		`INSERT INTO orders (trader_name, base, quote, side, base_amount, fragments_rate, execution_rate, activation_time, fulfill_time, exchange_id, status, taken_home, fee, fee_asset)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		o.TraderName, o.Base, o.Quote, sideValue(o.Side), o.BaseAmount.String(), o.FragmentsRate.String(),
		o.ExecutionRate.String(), o.ActivationTime, o.FulfillTime, o.ExchangeID, int(o.Status),
		o.TakenHome.String(), o.Fee.String(), o.FeeAsset,
	)
	if err != nil {
		return classifyWriteErr("store.InsertOrder", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return apperrors.Wrap(apperrors.KindStorage, "store.InsertOrder", err)
	}
	o.ID = id
	return nil
}

func (s *SQLiteStore) UpdateOrder(o model.Order) error {
	_, err := s.db.Exec(
		`UPDATE orders SET trader_name=?, base=?, quote=?, side=?, base_amount=?, fragments_rate=?, execution_rate=?,
		 activation_time=?, fulfill_time=?, exchange_id=?, status=?, taken_home=?, fee=?, fee_asset=? WHERE id=?`,
		o.TraderName, o.Base, o.Quote, sideValue(o.Side), o.BaseAmount.String(), o.FragmentsRate.String(),
		o.ExecutionRate.String(), o.ActivationTime, o.FulfillTime, o.ExchangeID, int(o.Status),
		o.TakenHome.String(), o.Fee.String(), o.FeeAsset, o.ID,
	)
	if err != nil {
		return classifyWriteErr("store.UpdateOrder", err)
	}
	return nil
}

func (s *SQLiteStore) GetOrder(id int64) (model.Order, error) {
	row := s.db.QueryRow(`SELECT `+orderColumns+` FROM orders WHERE id=?`, id)
	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return model.Order{}, apperrors.Wrap(apperrors.KindStorage, "store.GetOrder", apperrors.ErrNotFound)
	}
	if err != nil {
		return model.Order{}, apperrors.Wrap(apperrors.KindStorage, "store.GetOrder", err)
	}
	return o, nil
}

func (s *SQLiteStore) ReloadOrder(o *model.Order) error {
	fresh, err := s.GetOrder(o.ID)
	if err != nil {
		return err
	}
	*o = fresh
	return nil
}

func scanFragment(row interface {
	Scan(dest ...interface{}) error
}) (model.Fragment, error) {
	var f model.Fragment
	var side int
	var baseAmount, targetRate, takenHome string
	err := row.Scan(&f.ID, &f.Base, &f.Quote, &baseAmount, &targetRate, &side, &takenHome, &f.SpawningOrder, &f.ComposedOrder)
	if err != nil {
		return model.Fragment{}, err
	}
	f.Side = model.Side(side)
	f.BaseAmount = decimal.MustParse(baseAmount)
	f.TargetRate = decimal.MustParse(targetRate)
	f.TakenHome = decimal.MustParse(takenHome)
	return f, nil
}

const fragmentColumns = `id, base, quote, base_amount, target_rate, side, taken_home, spawning_order, composed_order`

func (s *SQLiteStore) InsertFragment(f *model.Fragment) error {
	res, err := s.db.Exec(
		`INSERT INTO fragments (base, quote, base_amount, target_rate, side, taken_home, spawning_order, composed_order)
		 VALUES (?,?,?,?,?,?,?,?)`,
		f.Base, f.Quote, f.BaseAmount.String(), f.TargetRate.String(), sideValue(f.Side),
		f.TakenHome.String(), f.SpawningOrder, f.ComposedOrder,
	)
	if err != nil {
		return classifyWriteErr("store.InsertFragment", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return apperrors.Wrap(apperrors.KindStorage, "store.InsertFragment", err)
	}
	f.ID = id
	return nil
}

func (s *SQLiteStore) UpdateFragment(f model.Fragment) error {
	_, err := s.db.Exec(
		`UPDATE fragments SET base=?, quote=?, base_amount=?, target_rate=?, side=?, taken_home=?, spawning_order=?, composed_order=? WHERE id=?`,
		f.Base, f.Quote, f.BaseAmount.String(), f.TargetRate.String(), sideValue(f.Side),
		f.TakenHome.String(), f.SpawningOrder, f.ComposedOrder, f.ID,
	)
	if err != nil {
		return classifyWriteErr("store.UpdateFragment", err)
	}
	return nil
}

func (s *SQLiteStore) GetFragment(id int64) (model.Fragment, error) {
	row := s.db.QueryRow(`SELECT `+fragmentColumns+` FROM fragments WHERE id=?`, id)
	f, err := scanFragment(row)
	if err == sql.ErrNoRows {
		return model.Fragment{}, apperrors.Wrap(apperrors.KindStorage, "store.GetFragment", apperrors.ErrNotFound)
	}
	if err != nil {
		return model.Fragment{}, apperrors.Wrap(apperrors.KindStorage, "store.GetFragment", err)
	}
	return f, nil
}

func (s *SQLiteStore) ReloadFragment(f *model.Fragment) error {
	fresh, err := s.GetFragment(f.ID)
	if err != nil {
		return err
	}
	*f = fresh
	return nil
}

func (s *SQLiteStore) Unassociated(side model.Side, targetRate decimal.Decimal, pair model.Pair) ([]model.Fragment, error) {
	rows, err := s.db.Query(
		`SELECT `+fragmentColumns+` FROM fragments WHERE base=? AND quote=? AND side=? AND target_rate=? AND composed_order=-1`,
		pair.Base, pair.Quote, sideValue(side), targetRate.String(),
	)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorage, "store.Unassociated", err)
	}
	defer rows.Close()

	var result []model.Fragment
	for rows.Next() {
		f, err := scanFragment(rows)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindStorage, "store.Unassociated", err)
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

func (s *SQLiteStore) ratesFiltered(side model.Side, pair model.Pair, op string, limit decimal.Decimal) ([]decimal.Decimal, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT target_rate FROM fragments WHERE base=? AND quote=? AND side=? AND composed_order=-1`,
		pair.Base, pair.Quote, sideValue(side),
	)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorage, "store.rates", err)
	}
	defer rows.Close()

	var rates []decimal.Decimal
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, apperrors.Wrap(apperrors.KindStorage, "store.rates", err)
		}
		rate := decimal.MustParse(s)
		switch op {
		case "above":
			if rate.GreaterThan(limit) {
				rates = append(rates, rate)
			}
		case "below":
			if rate.LessThan(limit) {
				rates = append(rates, rate)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorage, "store.rates", err)
	}
	sort.Slice(rates, func(i, j int) bool { return rates[i].LessThan(rates[j]) })
	return rates, nil
}

// SellRatesAbove returns the distinct target rates of free Sell fragments
// strictly above limit, ascending.
func (s *SQLiteStore) SellRatesAbove(limit decimal.Decimal, pair model.Pair) ([]decimal.Decimal, error) {
	return s.ratesFiltered(model.Sell, pair, "above", limit)
}

// BuyRatesBelow returns the distinct target rates of free Buy fragments
// strictly below limit, ascending.
func (s *SQLiteStore) BuyRatesBelow(limit decimal.Decimal, pair model.Pair) ([]decimal.Decimal, error) {
	return s.ratesFiltered(model.Buy, pair, "below", limit)
}

func (s *SQLiteStore) FragmentsComposing(o model.Order) ([]model.Fragment, error) {
	rows, err := s.db.Query(`SELECT `+fragmentColumns+` FROM fragments WHERE composed_order=?`, o.ID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorage, "store.FragmentsComposing", err)
	}
	defer rows.Close()

	var result []model.Fragment
	for rows.Next() {
		f, err := scanFragment(rows)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindStorage, "store.FragmentsComposing", err)
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

func (s *SQLiteStore) SelectOrders(pair model.Pair, status model.Status) ([]model.Order, error) {
	rows, err := s.db.Query(`SELECT `+orderColumns+` FROM orders WHERE base=? AND quote=? AND status=?`,
		pair.Base, pair.Quote, int(status))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorage, "store.SelectOrders", err)
	}
	defer rows.Close()

	var result []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindStorage, "store.SelectOrders", err)
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

func (s *SQLiteStore) AssignAvailableFragments(o model.Order) error {
	_, err := s.db.Exec(
		`UPDATE fragments SET composed_order=? WHERE target_rate=? AND side=? AND base=? AND quote=? AND composed_order=-1`,
		o.ID, o.FragmentsRate.String(), sideValue(o.Side), o.Base, o.Quote,
	)
	if err != nil {
		return classifyWriteErr("store.AssignAvailableFragments", err)
	}
	return nil
}

func (s *SQLiteStore) SumFragmentsOfOrder(o model.Order) (decimal.Decimal, error) {
	fragments, err := s.FragmentsComposing(o)
	if err != nil {
		return decimal.Zero, err
	}
	if len(fragments) == 0 {
		return decimal.Zero, apperrors.Wrap(apperrors.KindStorage, "store.SumFragmentsOfOrder", apperrors.ErrInternal)
	}
	total := decimal.Zero
	for _, f := range fragments {
		total = total.Add(f.BaseAmount)
	}
	return total, nil
}

// PrepareOrder runs inside a single ACID transaction: insert a new Inactive
// order, assign the matching free fragments to it, set its baseAmount from
// their sum, and persist.
func (s *SQLiteStore) PrepareOrder(traderName string, side model.Side, rate decimal.Decimal, pair model.Pair) (model.Order, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return model.Order{}, apperrors.Wrap(apperrors.KindStorage, "store.PrepareOrder", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	order := model.Order{
		TraderName:    traderName,
		Base:          pair.Base,
		Quote:         pair.Quote,
		Side:          side,
		BaseAmount:    decimal.Zero,
		FragmentsRate: rate,
		ExecutionRate: decimal.Zero,
		ExchangeID:    model.UnsetID,
		Status:        model.Inactive,
		TakenHome:     decimal.Zero,
		Fee:           decimal.Zero,
	}

	res, err := tx.Exec(
		`INSERT INTO orders (trader_name, base, quote, side, base_amount, fragments_rate, execution_rate, activation_time, fulfill_time, exchange_id, status, taken_home, fee, fee_asset)
		 VALUES (?,?,?,?,?,?,?,0,0,?,?,?,?,?)`,
		order.TraderName, order.Base, order.Quote, sideValue(order.Side), order.BaseAmount.String(),
		order.FragmentsRate.String(), order.ExecutionRate.String(), order.ExchangeID, int(order.Status),
		order.TakenHome.String(), order.Fee.String(), order.FeeAsset,
	)
	if err != nil {
		return model.Order{}, classifyWriteErr("store.PrepareOrder: insert", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Order{}, apperrors.Wrap(apperrors.KindStorage, "store.PrepareOrder", err)
	}
	order.ID = id

	if _, err := tx.Exec(
		`UPDATE fragments SET composed_order=? WHERE target_rate=? AND side=? AND base=? AND quote=? AND composed_order=-1`,
		order.ID, order.FragmentsRate.String(), sideValue(order.Side), order.Base, order.Quote,
	); err != nil {
		return model.Order{}, classifyWriteErr("store.PrepareOrder: assign", err)
	}

	rows, err := tx.Query(`SELECT base_amount FROM fragments WHERE composed_order=?`, order.ID)
	if err != nil {
		return model.Order{}, apperrors.Wrap(apperrors.KindStorage, "store.PrepareOrder: sum", err)
	}
	sum := decimal.Zero
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			rows.Close()
			return model.Order{}, apperrors.Wrap(apperrors.KindStorage, "store.PrepareOrder: sum", err)
		}
		sum = sum.Add(decimal.MustParse(s))
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return model.Order{}, apperrors.Wrap(apperrors.KindStorage, "store.PrepareOrder: sum", err)
	}
	rows.Close()
	order.BaseAmount = sum

	if _, err := tx.Exec(`UPDATE orders SET base_amount=? WHERE id=?`, order.BaseAmount.String(), order.ID); err != nil {
		return model.Order{}, classifyWriteErr("store.PrepareOrder: update amount", err)
	}

	if err := tx.Commit(); err != nil {
		return model.Order{}, apperrors.Wrap(apperrors.KindStorage, "store.PrepareOrder: commit", err)
	}
	committed = true

	return order, nil
}

// DiscardOrder frees composing fragments and deletes the order row inside a
// single transaction.
func (s *SQLiteStore) DiscardOrder(o *model.Order) error {
	tx, err := s.db.Begin()
	if err != nil {
		return apperrors.Wrap(apperrors.KindStorage, "store.DiscardOrder", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if _, err := tx.Exec(`UPDATE fragments SET composed_order=-1 WHERE composed_order=?`, o.ID); err != nil {
		return classifyWriteErr("store.DiscardOrder: free fragments", err)
	}
	if _, err := tx.Exec(`DELETE FROM orders WHERE id=?`, o.ID); err != nil {
		return classifyWriteErr("store.DiscardOrder: delete", err)
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.KindStorage, "store.DiscardOrder: commit", err)
	}
	committed = true

	o.ID = model.UnsetID
	return nil
}

// OnFillOrder idempotently promotes an order to Fulfilled, writing its
// execution fields. Returns true the first time it is applied to a given
// order id, false on any later call (the order was already Fulfilled).
func (s *SQLiteStore) OnFillOrder(o model.Order) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, apperrors.Wrap(apperrors.KindStorage, "store.OnFillOrder", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	var currentStatus int
	err = tx.QueryRow(`SELECT status FROM orders WHERE id=?`, o.ID).Scan(&currentStatus)
	if err == sql.ErrNoRows {
		return false, apperrors.Wrap(apperrors.KindStorage, "store.OnFillOrder", apperrors.ErrNotFound)
	}
	if err != nil {
		return false, apperrors.Wrap(apperrors.KindStorage, "store.OnFillOrder", err)
	}

	if model.Status(currentStatus) == model.Fulfilled {
		if err := tx.Commit(); err != nil {
			return false, apperrors.Wrap(apperrors.KindStorage, "store.OnFillOrder: commit", err)
		}
		committed = true
		return false, nil
	}

	_, err = tx.Exec(
		`UPDATE orders SET execution_rate=?, activation_time=CASE WHEN activation_time=0 THEN ? ELSE activation_time END,
		 fulfill_time=?, exchange_id=?, status=?, taken_home=?, fee=?, fee_asset=? WHERE id=?`,
		o.ExecutionRate.String(), o.ActivationTime, o.FulfillTime, o.ExchangeID, int(model.Fulfilled),
		o.TakenHome.String(), o.Fee.String(), o.FeeAsset, o.ID,
	)
	if err != nil {
		return false, classifyWriteErr("store.OnFillOrder: update", err)
	}

	if err := tx.Commit(); err != nil {
		return false, apperrors.Wrap(apperrors.KindStorage, "store.OnFillOrder: commit", err)
	}
	committed = true
	return true, nil
}

func (s *SQLiteStore) InsertBalance(b model.Balance) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO balances (time, base_balance, quote_balance, base_buy_potential, quote_buy_potential, base_sell_potential, quote_sell_potential)
		 VALUES (?,?,?,?,?,?,?)`,
		b.Time, b.BaseBalance.String(), b.QuoteBalance.String(), b.BaseBuyPotential.String(),
		b.QuoteBuyPotential.String(), b.BaseSellPotential.String(), b.QuoteSellPotential.String(),
	)
	if err != nil {
		return 0, classifyWriteErr("store.InsertBalance", err)
	}
	return res.LastInsertId()
}

func scanBalance(row interface {
	Scan(dest ...interface{}) error
}) (model.Balance, error) {
	var b model.Balance
	var baseBalance, quoteBalance, baseBuy, quoteBuy, baseSell, quoteSell string
	err := row.Scan(&b.ID, &b.Time, &baseBalance, &quoteBalance, &baseBuy, &quoteBuy, &baseSell, &quoteSell)
	if err != nil {
		return model.Balance{}, err
	}
	b.BaseBalance = decimal.MustParse(baseBalance)
	b.QuoteBalance = decimal.MustParse(quoteBalance)
	b.BaseBuyPotential = decimal.MustParse(baseBuy)
	b.QuoteBuyPotential = decimal.MustParse(quoteBuy)
	b.BaseSellPotential = decimal.MustParse(baseSell)
	b.QuoteSellPotential = decimal.MustParse(quoteSell)
	return b, nil
}

const balanceColumns = `id, time, base_balance, quote_balance, base_buy_potential, quote_buy_potential, base_sell_potential, quote_sell_potential`

func (s *SQLiteStore) LatestBalance() (*model.Balance, error) {
	row := s.db.QueryRow(`SELECT ` + balanceColumns + ` FROM balances ORDER BY time DESC LIMIT 1`)
	b, err := scanBalance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorage, "store.LatestBalance", err)
	}
	return &b, nil
}

func (s *SQLiteStore) ListBalances() ([]model.Balance, error) {
	rows, err := s.db.Query(`SELECT ` + balanceColumns + ` FROM balances ORDER BY time ASC`)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorage, "store.ListBalances", err)
	}
	defer rows.Close()

	var result []model.Balance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindStorage, "store.ListBalances", err)
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

func (s *SQLiteStore) IncrementLaunchCount() (int64, error) {
	if _, err := s.db.Exec(`UPDATE launch_count SET count = count + 1 WHERE id = 1`); err != nil {
		return 0, classifyWriteErr("store.IncrementLaunchCount", err)
	}
	var count int64
	if err := s.db.QueryRow(`SELECT count FROM launch_count WHERE id = 1`).Scan(&count); err != nil {
		return 0, apperrors.Wrap(apperrors.KindStorage, "store.IncrementLaunchCount", err)
	}
	return count, nil
}

// classifyWriteErr maps a sqlite3 unique-constraint violation to
// apperrors.ErrConflict, everything else to ErrInternal.
func classifyWriteErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if isUniqueConstraintErr(err) {
		return apperrors.Wrap(apperrors.KindStorage, op, apperrors.ErrConflict)
	}
	return apperrors.Wrap(apperrors.KindStorage, op, fmt.Errorf("%w: %v", apperrors.ErrInternal, err))
}

func isUniqueConstraintErr(err error) bool {
	sqliteErr, ok := err.(sqlite3.Error)
	if !ok {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrConstraint &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}
