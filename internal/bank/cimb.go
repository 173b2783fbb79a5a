package bank

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/unbilled-sync/internal/domain"
	"github.com/dvloznov/unbilled-sync/internal/extract"
	"github.com/dvloznov/unbilled-sync/internal/logger"
	"github.com/dvloznov/unbilled-sync/internal/rowparse"
)

// CIMB menu selector keys.
const (
	SelCIMBAccounts   = "accounts_menu"
	SelCIMBCreditCard = "credit_card_menu"
	SelCIMBCard       = "card_tile"
)

// CIMBDefaultSelectors match the CIMB OCTO web app.
var CIMBDefaultSelectors = Selectors{
	SelUsername:       `#username`,
	SelPassword:       `#password`,
	SelLoginButton:    `//*[@id="root"]/div[2]/div/div[2]/div/div/form/button[2]`,
	SelLogout:         `//*[@id="main-navigation"]/div[2]/button`,
	SelCIMBAccounts:   `//*[@id="main-navigation"]/ul/li[1]/a/span`,
	SelCIMBCreditCard: `//*[@id="root"]/div/main/div/div[1]/div/div[3]/div[2]`,
	SelCIMBCard:       `//*[@id="radix-:r1f:"]/div/div/div/div/div[2]/div/div[1]`,
	SelTransaction:    `//*[@id="root"]/div/main/div/div[3]/div[2]/div/div/div/div[1]/div/div[2]`,
	SelRows:           `body > div > div`,
	SelCells:          `div`,
}

// CIMB reads transactions rendered as nested blocks: each row is a div whose
// child divs are date, a second date, description and amount.
type CIMB struct {
	url, username, password string

	sel     Selectors
	pending PendingPolicy
	now     func() time.Time
}

// NewCIMB builds the CIMB adapter. CIMB records carry no category.
func NewCIMB(s Settings) (*CIMB, error) {
	sel, err := CIMBDefaultSelectors.merge(s.Selectors)
	if err != nil {
		return nil, fmt.Errorf("NewCIMB: %w", err)
	}
	return &CIMB{
		url:      s.URL,
		username: s.Username,
		password: s.Password,
		sel:      sel,
		pending:  s.pending(false),
		now:      s.clock(),
	}, nil
}

// Name implements Adapter.
func (c *CIMB) Name() string { return "CIMB" }

// Login implements Adapter.
func (c *CIMB) Login(ctx context.Context, nav Navigator) error {
	return login(ctx, nav, c.Name(), c.url, c.username, c.password, c.sel)
}

// Navigate implements Adapter. Each panel is rendered client side, so every
// click waits for the next panel before continuing.
func (c *CIMB) Navigate(ctx context.Context, nav Navigator) error {
	if err := nav.ClickMenuPath(ctx, []string{c.sel[SelCIMBAccounts]}); err != nil {
		return fmt.Errorf("CIMB navigate: open accounts: %w", err)
	}
	if err := waitLoaded(ctx, nav); err != nil {
		return fmt.Errorf("CIMB navigate: %w", err)
	}
	if err := nav.ClickMenuPath(ctx, []string{c.sel[SelCIMBCreditCard]}); err != nil {
		return fmt.Errorf("CIMB navigate: open credit cards: %w", err)
	}
	if err := nav.WaitUntilVisible(ctx, c.sel[SelCIMBCard]); err != nil {
		return fmt.Errorf("CIMB navigate: wait for card: %w", err)
	}
	if err := nav.ClickMenuPath(ctx, []string{c.sel[SelCIMBCard]}); err != nil {
		return fmt.Errorf("CIMB navigate: open card: %w", err)
	}
	if err := waitLoaded(ctx, nav); err != nil {
		return fmt.Errorf("CIMB navigate: %w", err)
	}
	log := logger.FromContext(ctx)
	log.Info().Msg("Navigated to CIMB transactions page")
	return nil
}

// ExtractRows implements Adapter.
func (c *CIMB) ExtractRows(ctx context.Context, nav Navigator) ([]domain.TransactionRecord, error) {
	if err := nav.WaitUntilVisible(ctx, c.sel[SelTransaction]); err != nil {
		return nil, fmt.Errorf("CIMB extract: wait for transaction body: %w", err)
	}
	html, err := nav.Snapshot(ctx, c.sel[SelTransaction])
	if err != nil {
		return nil, fmt.Errorf("CIMB extract: snapshot transaction body: %w", err)
	}

	rows, err := extract.Rows(html, c.sel[SelRows], c.sel[SelCells])
	if err != nil {
		return nil, fmt.Errorf("CIMB extract: %w", err)
	}
	log := logger.FromContext(ctx)
	log.Info().Int("rows", len(rows)).Msg("Found transaction rows")

	return extract.Extract(ctx, rows, c).Records, nil
}

// ParseRow implements extract.RowParser for the layout
// [date, ignored, description, amount].
func (c *CIMB) ParseRow(ctx context.Context, row domain.RawRow) (domain.TransactionRecord, error) {
	if len(row) < 4 {
		return domain.TransactionRecord{}, extract.Skip("row has %d cells, want at least 4", len(row))
	}
	if row[0] == "" {
		return domain.TransactionRecord{}, extract.ErrArtifact
	}
	if c.pending.SkipPendingAmount && row[3] == rowparse.PendingMarker {
		return domain.TransactionRecord{}, extract.Skip("amount not posted yet")
	}

	return domain.TransactionRecord{
		Date:        rowparse.ParseDate(ctx, row[0], rowparse.Today(c.now())),
		Description: row[2],
		Amount:      rowparse.ParseAmount(ctx, row[3]),
	}, nil
}

// Logout implements Adapter.
func (c *CIMB) Logout(ctx context.Context, nav Navigator) error {
	return logout(ctx, nav, c.Name(), c.sel)
}
