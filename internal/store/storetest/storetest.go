// Package storetest is a conformance suite every store.Backend must pass.
package storetest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jipraks/kasirgratisan/internal/store"
)

// Run exercises a backend. open must return an empty backend; Run closes it.
func Run(t *testing.T, open func(t *testing.T) store.Backend) {
	t.Helper()

	cases := []struct {
		name string
		fn   func(t *testing.T, b store.Backend)
	}{
		{"Version", testVersion},
		{"AddAssignsIncreasingIDs", testAddAssignsIDs},
		{"GetMissing", testGetMissing},
		{"PutUpserts", testPutUpserts},
		{"DeleteAndClear", testDeleteAndClear},
		{"BulkPutMixesExplicitAndAutoIDs", testBulkPut},
		{"AddAfterBulkPutContinuesSequence", testAddAfterBulkPut},
		{"RejectsNonObjectDocuments", testRejectsNonObject},
		{"UnknownCollection", testUnknownCollection},
		{"CaptureRestore", testCaptureRestore},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := open(t)
			t.Cleanup(func() { _ = b.Close() })
			tc.fn(t, b)
		})
	}
}

func testVersion(t *testing.T, b store.Backend) {
	ctx := context.Background()
	v, err := b.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, v)

	require.NoError(t, b.SetVersion(ctx, 4))
	v, err = b.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, v)
}

func testAddAssignsIDs(t *testing.T, b store.Backend) {
	ctx := context.Background()
	first, err := b.Add(ctx, store.Categories, json.RawMessage(`{"name":"Makanan"}`))
	require.NoError(t, err)
	second, err := b.Add(ctx, store.Categories, json.RawMessage(`{"name":"Minuman","id":0}`))
	require.NoError(t, err)
	assert.Greater(t, second, first)

	doc, err := b.Get(ctx, store.Categories, second)
	require.NoError(t, err)
	id, err := store.DocID(doc)
	require.NoError(t, err)
	assert.Equal(t, second, id)
	assert.JSONEq(t, `{"id":`+itoa(second)+`,"name":"Minuman"}`, string(doc))

	n, err := b.Count(ctx, store.Categories)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	all, err := b.All(ctx, store.Categories)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first, all[0].ID)
	assert.Equal(t, second, all[1].ID)
}

func testGetMissing(t *testing.T, b store.Backend) {
	_, err := b.Get(context.Background(), store.Products, 999)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func testPutUpserts(t *testing.T, b store.Backend) {
	ctx := context.Background()
	require.NoError(t, b.Put(ctx, store.Products, 10, json.RawMessage(`{"name":"Teh Celup","stock":4}`)))
	require.NoError(t, b.Put(ctx, store.Products, 10, json.RawMessage(`{"name":"Teh Celup","stock":9}`)))

	doc, err := b.Get(ctx, store.Products, 10)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":10,"name":"Teh Celup","stock":9}`, string(doc))

	n, err := b.Count(ctx, store.Products)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func testDeleteAndClear(t *testing.T, b store.Backend) {
	ctx := context.Background()
	a, err := b.Add(ctx, store.PaymentMethods, json.RawMessage(`{"name":"Tunai"}`))
	require.NoError(t, err)
	_, err = b.Add(ctx, store.PaymentMethods, json.RawMessage(`{"name":"QRIS"}`))
	require.NoError(t, err)
	_, err = b.Add(ctx, store.Suppliers, json.RawMessage(`{"name":"CV Maju"}`))
	require.NoError(t, err)

	require.NoError(t, b.Delete(ctx, store.PaymentMethods, a))
	n, err := b.Count(ctx, store.PaymentMethods)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, b.Clear(ctx, store.PaymentMethods))
	n, err = b.Count(ctx, store.PaymentMethods)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = b.Count(ctx, store.Suppliers)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "clear touches one collection only")
}

func testBulkPut(t *testing.T, b store.Backend) {
	ctx := context.Background()
	err := b.BulkPut(ctx, store.TransactionItems, []store.Record{
		{ID: 5, Doc: json.RawMessage(`{"transactionId":1,"quantity":2}`)},
		{Doc: json.RawMessage(`{"transactionId":1,"quantity":1}`)},
		{ID: 2, Doc: json.RawMessage(`{"transactionId":2,"quantity":3}`)},
	})
	require.NoError(t, err)

	all, err := b.All(ctx, store.TransactionItems)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, int64(2), all[0].ID)
	assert.Equal(t, int64(5), all[1].ID)
	assert.Greater(t, all[2].ID, int64(5))
	for _, rec := range all {
		id, err := store.DocID(rec.Doc)
		require.NoError(t, err)
		assert.Equal(t, rec.ID, id)
	}
}

func testAddAfterBulkPut(t *testing.T, b store.Backend) {
	ctx := context.Background()
	require.NoError(t, b.BulkPut(ctx, store.Transactions, []store.Record{
		{ID: 41, Doc: json.RawMessage(`{"receiptNumber":"TX1"}`)},
		{ID: 42, Doc: json.RawMessage(`{"receiptNumber":"TX2"}`)},
	}))
	id, err := b.Add(ctx, store.Transactions, json.RawMessage(`{"receiptNumber":"TX3"}`))
	require.NoError(t, err)
	assert.Greater(t, id, int64(42))
}

func testRejectsNonObject(t *testing.T, b store.Backend) {
	ctx := context.Background()
	_, err := b.Add(ctx, store.Categories, json.RawMessage(`[1,2]`))
	assert.Error(t, err)

	err = b.BulkPut(ctx, store.Categories, []store.Record{
		{ID: 1, Doc: json.RawMessage(`{"name":"ok"}`)},
		{ID: 2, Doc: json.RawMessage(`"nope"`)},
	})
	assert.Error(t, err)
}

func testUnknownCollection(t *testing.T, b store.Backend) {
	_, err := b.All(context.Background(), store.Collection("customers"))
	assert.True(t, errors.Is(err, store.ErrUnknownCollection))
}

func testCaptureRestore(t *testing.T, b store.Backend) {
	ctx := context.Background()
	_, err := b.Add(ctx, store.Categories, json.RawMessage(`{"name":"Makanan"}`))
	require.NoError(t, err)
	_, err = b.Add(ctx, store.Products, json.RawMessage(`{"name":"Roti Tawar","stock":3}`))
	require.NoError(t, err)

	before, err := store.Capture(ctx, b)
	require.NoError(t, err)

	require.NoError(t, b.Clear(ctx, store.Categories))
	_, err = b.Add(ctx, store.Products, json.RawMessage(`{"name":"Gula 1kg","stock":1}`))
	require.NoError(t, err)

	require.NoError(t, store.Restore(ctx, b, before))
	after, err := store.Capture(ctx, b)
	require.NoError(t, err)

	assert.Equal(t, before.Counts(), after.Counts())
	for _, c := range store.Collections() {
		require.Len(t, after[c], len(before[c]), string(c))
		for i := range before[c] {
			assert.Equal(t, before[c][i].ID, after[c][i].ID)
			assert.JSONEq(t, string(before[c][i].Doc), string(after[c][i].Doc))
		}
	}
}

func itoa(id int64) string {
	raw, _ := json.Marshal(id)
	return string(raw)
}
