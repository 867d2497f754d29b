package store

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chronorm/internal/attribute"
	"github.com/roach88/chronorm/internal/columnar"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	compressions := []columnar.Compression{
		columnar.CompressionNone,
		columnar.CompressionLZ4,
		columnar.CompressionSnappy,
		columnar.CompressionZstd,
	}
	for _, c := range compressions {
		t.Run(string(c), func(t *testing.T) {
			ctx := context.Background()
			s := newSchema(t)

			src := createTestStore(t)
			seedOrders(t, src, s)
			var buf bytes.Buffer
			id, err := src.ExportSnapshot(ctx, s.item, &buf, columnar.SnapshotOptions{Compression: c})
			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, id)

			dst := createTestStore(t)
			require.NoError(t, dst.CreateTable(ctx, s.item))
			n, err := dst.ImportSnapshot(ctx, s.item, &buf)
			require.NoError(t, err)
			assert.Equal(t, 3, n)

			want, err := src.Find(ctx, s.item, nil, FindOptions{})
			require.NoError(t, err)
			got, err := dst.Find(ctx, s.item, nil, FindOptions{})
			require.NoError(t, err)
			require.Len(t, got, len(want))
			for i := range want {
				for _, a := range s.item.Attributes() {
					assert.True(t, a.ValueEquals(want[i], got[i]), "%s of row %d", a, i)
				}
			}
			assert.True(t, s.sku.IsAttributeNull(got[2]), "nulls survive the trip")
		})
	}
}

func TestSnapshot_AllVersions(t *testing.T) {
	ctx := context.Background()
	s := newSchema(t)
	src := createTestStore(t)
	require.NoError(t, src.CreateTable(ctx, s.position))
	require.NoError(t, src.Insert(ctx, s.position, []any{
		attribute.Row{"id": int32(7), "businessFrom": ts("2024-01-01 00:00:00"), "businessTo": ts("2024-06-01 00:00:00")},
		attribute.Row{"id": int32(7), "businessFrom": ts("2024-06-01 00:00:00"), "businessTo": attribute.DefaultInfinity},
	}))

	var buf bytes.Buffer
	_, err := src.ExportSnapshot(ctx, s.position, &buf, columnar.DefaultSnapshotOptions())
	require.NoError(t, err)

	snap, err := columnar.ReadSnapshot(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "Position", snap.Portal)
	assert.Equal(t, 2, snap.Rows, "history is exported, not only the current version")
	_, ok := snap.Column("businessFrom")
	assert.True(t, ok)
}

func TestSnapshot_Records(t *testing.T) {
	ctx := context.Background()
	s := newSchema(t)
	fixed := uuid.MustParse("6f1c1d8e-2a8e-4f0a-9d59-0a3c8c1b2f10")

	st := createTestStore(t)
	st.opts.SnapshotID = func() uuid.UUID { return fixed }
	seedOrders(t, st, s)

	var buf bytes.Buffer
	id, err := st.ExportSnapshot(ctx, s.order, &buf, columnar.DefaultSnapshotOptions())
	require.NoError(t, err)
	assert.Equal(t, fixed, id)

	_, err = st.DB().ExecContext(ctx, "DELETE FROM orders")
	require.NoError(t, err)
	n, err := st.ImportSnapshot(ctx, s.order, &buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	records, err := st.Snapshots(ctx, "Order")
	require.NoError(t, err)
	assert.Equal(t, []SnapshotRecord{
		{ID: fixed, Portal: "Order", Rows: 3, Direction: "export"},
		{ID: fixed, Portal: "Order", Rows: 3, Direction: "import"},
	}, records)

	records, err = st.Snapshots(ctx, "Item")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSnapshot_ImportErrors(t *testing.T) {
	ctx := context.Background()
	s := newSchema(t)
	st := createTestStore(t)
	seedOrders(t, st, s)

	var buf bytes.Buffer
	_, err := st.ExportSnapshot(ctx, s.order, &buf, columnar.DefaultSnapshotOptions())
	require.NoError(t, err)

	_, err = st.ImportSnapshot(ctx, s.item, bytes.NewReader(buf.Bytes()))
	assert.ErrorContains(t, err, "snapshot holds Order rows")

	_, err = st.ImportSnapshot(ctx, s.order, bytes.NewReader([]byte("not a snapshot")))
	assert.Error(t, err)

	partial := &columnar.Snapshot{ID: uuid.New(), Portal: "Order", Rows: 0}
	var pbuf bytes.Buffer
	require.NoError(t, columnar.WriteSnapshot(&pbuf, partial, columnar.DefaultSnapshotOptions()))
	_, err = st.ImportSnapshot(ctx, s.order, &pbuf)
	assert.ErrorContains(t, err, "no column id")
}
