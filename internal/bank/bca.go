package bank

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/unbilled-sync/internal/categorize"
	"github.com/dvloznov/unbilled-sync/internal/domain"
	"github.com/dvloznov/unbilled-sync/internal/extract"
	"github.com/dvloznov/unbilled-sync/internal/logger"
	"github.com/dvloznov/unbilled-sync/internal/rowparse"
)

// BCA menu selector keys.
const (
	SelBCAMyAccount      = "my_account_menu"
	SelBCACreditCardInfo = "credit_card_menu"
	SelBCAUnbilled       = "unbilled_menu"
)

// BCADefaultSelectors match the BCA internet banking Angular app.
var BCADefaultSelectors = Selectors{
	SelUsername:          `input[name="username"]`,
	SelPassword:          `input[name="password"]`,
	SelLoginButton:       `/html/body/app-root/ng-component/section/main/ng-component/section/div/div[2]/app-card/app-card-body/form/div[4]/div/button`,
	SelLogout:            `/html/body/app-root/ng-component/section/app-header/header/nav/div/div/ul/li[3]/a`,
	SelBCAMyAccount:      `/html/body/app-root/ng-component/section/app-header/header/nav/div/div/app-nav-menu/ul/li[3]/a`,
	SelBCACreditCardInfo: `/html/body/app-root/ng-component/section/app-header/header/nav/div/div/app-nav-menu/ul/li[3]/div/ul/li[2]/a`,
	SelBCAUnbilled:       `/html/body/app-root/ng-component/section/section[2]/ng-component/main/div/div/div[1]/app-side-menu/ul[2]/a[2]`,
	SelTransaction:       `#trxTable`,
	SelRows:              `table tbody tr`,
	SelCells:             `td`,
}

// BCA reads the unbilled-transactions table: one <tr> per transaction with
// date, description and amount cells.
type BCA struct {
	url, username, password string

	sel         Selectors
	pending     PendingPolicy
	categorizer *categorize.Categorizer
	now         func() time.Time
}

// NewBCA builds the BCA adapter. Pending amounts are skipped by default.
func NewBCA(s Settings) (*BCA, error) {
	sel, err := BCADefaultSelectors.merge(s.Selectors)
	if err != nil {
		return nil, fmt.Errorf("NewBCA: %w", err)
	}
	return &BCA{
		url:         s.URL,
		username:    s.Username,
		password:    s.Password,
		sel:         sel,
		pending:     s.pending(true),
		categorizer: s.categorizer(),
		now:         s.clock(),
	}, nil
}

// Name implements Adapter.
func (b *BCA) Name() string { return "BCA" }

// Login implements Adapter.
func (b *BCA) Login(ctx context.Context, nav Navigator) error {
	return login(ctx, nav, b.Name(), b.url, b.username, b.password, b.sel)
}

// Navigate implements Adapter.
func (b *BCA) Navigate(ctx context.Context, nav Navigator) error {
	path := []string{b.sel[SelBCAMyAccount], b.sel[SelBCACreditCardInfo], b.sel[SelBCAUnbilled]}
	if err := nav.ClickMenuPath(ctx, path); err != nil {
		return fmt.Errorf("BCA navigate: %w", err)
	}
	if err := waitLoaded(ctx, nav); err != nil {
		return fmt.Errorf("BCA navigate: %w", err)
	}
	log := logger.FromContext(ctx)
	log.Info().Msg("Navigated to BCA transactions page")
	return nil
}

// ExtractRows implements Adapter. The table is read from a single snapshot.
func (b *BCA) ExtractRows(ctx context.Context, nav Navigator) ([]domain.TransactionRecord, error) {
	if err := nav.WaitUntilVisible(ctx, b.sel[SelTransaction]); err != nil {
		return nil, fmt.Errorf("BCA extract: wait for transaction table: %w", err)
	}
	html, err := nav.Snapshot(ctx, b.sel[SelTransaction])
	if err != nil {
		return nil, fmt.Errorf("BCA extract: snapshot transaction table: %w", err)
	}

	rows, err := extract.Rows(html, b.sel[SelRows], b.sel[SelCells])
	if err != nil {
		return nil, fmt.Errorf("BCA extract: %w", err)
	}
	log := logger.FromContext(ctx)
	log.Info().Int("rows", len(rows)).Msg("Found transaction rows")

	return extract.Extract(ctx, rows, b).Records, nil
}

// ParseRow implements extract.RowParser for the layout
// [date, description, amount].
func (b *BCA) ParseRow(ctx context.Context, row domain.RawRow) (domain.TransactionRecord, error) {
	if len(row) < 3 {
		return domain.TransactionRecord{}, extract.Skip("row has %d cells, want at least 3", len(row))
	}
	if b.pending.SkipPendingAmount && row[2] == rowparse.PendingMarker {
		return domain.TransactionRecord{}, extract.Skip("amount not posted yet")
	}

	today := rowparse.Today(b.now())
	rec := domain.TransactionRecord{
		Date:        rowparse.ParseDate(ctx, row[0], today),
		Description: row[1],
		Amount:      rowparse.ParseAmount(ctx, row[2]),
	}
	rec.Category = b.categorizer.Categorize(rec.Description)
	return rec, nil
}

// Logout implements Adapter.
func (b *BCA) Logout(ctx context.Context, nav Navigator) error {
	return logout(ctx, nav, b.Name(), b.sel)
}
