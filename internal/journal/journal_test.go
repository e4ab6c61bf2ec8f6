package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenderscan/internal/models"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(context.Background(), filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournalRoundTrip(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)

	runID, err := j.StartRun(ctx, "tender.xlsx", "Яндекс Маркет")
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	found := models.OfferResult{Price: "1 000 ₽", BusinessPrice: "1 220 ₽", Link: "https://market.test/p/1"}
	require.NoError(t, j.RecordOffer(ctx, runID, 1, "Кабель", found))
	// An item that found nothing is journaled too: resume must not retry it.
	require.NoError(t, j.RecordOffer(ctx, runID, 2, "Светильник", models.OfferResult{}))

	table, err := j.CompletedOffers(ctx, "tender.xlsx", "Яндекс Маркет")
	require.NoError(t, err)
	require.Len(t, table, 2)
	assert.Equal(t, found, table.Get(1))
	assert.False(t, table.Get(2).Found())
}

func TestJournalUpsertsOffers(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)

	runID, err := j.StartRun(ctx, "tender.xlsx", "Ozon")
	require.NoError(t, err)

	require.NoError(t, j.RecordOffer(ctx, runID, 1, "Кабель", models.OfferResult{Price: "900 ₽"}))
	require.NoError(t, j.RecordOffer(ctx, runID, 1, "Кабель", models.OfferResult{Price: "850 ₽"}))

	table, err := j.CompletedOffers(ctx, "tender.xlsx", "Ozon")
	require.NoError(t, err)
	require.Len(t, table, 1)
	assert.Equal(t, "850 ₽", table.Get(1).Price)
}

func TestJournalLatestRunWins(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)

	oldRun, err := j.StartRun(ctx, "tender.xlsx", "Ozon")
	require.NoError(t, err)
	require.NoError(t, j.RecordOffer(ctx, oldRun, 1, "Кабель", models.OfferResult{Price: "999 ₽"}))

	time.Sleep(10 * time.Millisecond)

	newRun, err := j.StartRun(ctx, "tender.xlsx", "Ozon")
	require.NoError(t, err)
	require.NoError(t, j.RecordOffer(ctx, newRun, 1, "Кабель", models.OfferResult{Price: "777 ₽"}))

	table, err := j.CompletedOffers(ctx, "tender.xlsx", "Ozon")
	require.NoError(t, err)
	assert.Equal(t, "777 ₽", table.Get(1).Price)
}

func TestJournalSeparatesInputsAndLabels(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)

	runID, err := j.StartRun(ctx, "a.xlsx", "Ozon")
	require.NoError(t, err)
	require.NoError(t, j.RecordOffer(ctx, runID, 1, "Кабель", models.OfferResult{Price: "1 ₽"}))

	_, err = j.CompletedOffers(ctx, "b.xlsx", "Ozon")
	assert.ErrorIs(t, err, ErrNoPriorRun)

	_, err = j.CompletedOffers(ctx, "a.xlsx", "Яндекс Маркет")
	assert.ErrorIs(t, err, ErrNoPriorRun)
}
