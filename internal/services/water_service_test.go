package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cuotas/internal/core"
	"cuotas/internal/storage"
)

func seedWaterClient(t *testing.T, repo *storage.SQLiteRepository) core.Unit {
	t.Helper()
	ctx := context.Background()
	client := core.Client{
		ID:               "los-arcos",
		Name:             "Los Arcos",
		FiscalStartMonth: 1,
		Currency:         "MXN",
		WaterRate:        core.Money{Centavos: 2500}, // $25.00 per m3
		WaterService:     core.Money{Centavos: 5000}, // $50.00 fixed
		PenaltyRateBP:    500,                        // 5% per month
	}
	require.NoError(t, repo.CreateClient(ctx, client))
	unit := core.Unit{
		ID:         "unit-7",
		ClientID:   client.ID,
		UnitNumber: "7",
		Owners:     "Lucía Fernández",
		Dues:       core.Money{Centavos: 40000},
	}
	require.NoError(t, repo.CreateUnit(ctx, unit))
	return unit
}

func TestRecordReadingRejectsDecrease(t *testing.T) {
	repo := newTestStorage(t)
	unit := seedWaterClient(t, repo)
	svc := NewWaterService(repo, nil)
	ctx := context.Background()

	_, err := svc.RecordReading(ctx, core.WaterReading{
		ClientID: unit.ClientID, UnitID: unit.ID,
		Date: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), Reading: 100,
	})
	require.NoError(t, err)

	// Meter cannot run backwards.
	_, err = svc.RecordReading(ctx, core.WaterReading{
		ClientID: unit.ClientID, UnitID: unit.ID,
		Date: time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC), Reading: 90,
	})
	require.ErrorIs(t, err, core.ErrInvalidReading)
}

func TestGenerateBill(t *testing.T) {
	repo := newTestStorage(t)
	unit := seedWaterClient(t, repo)
	svc := NewWaterService(repo, nil)
	ctx := context.Background()

	for _, r := range []struct {
		date    time.Time
		reading int64
	}{
		{time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), 100},
		{time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC), 112},
	} {
		_, err := svc.RecordReading(ctx, core.WaterReading{
			ClientID: unit.ClientID, UnitID: unit.ID, Date: r.date, Reading: r.reading,
		})
		require.NoError(t, err)
	}

	bill, err := svc.GenerateBill(ctx, unit.ClientID, unit.ID, 2025, 8)
	require.NoError(t, err)
	require.Equal(t, int64(12), bill.Consumption)
	require.Equal(t, int64(12*2500), bill.Amount.Centavos)
	require.Equal(t, int64(5000), bill.Service.Centavos)
	require.False(t, bill.Paid)

	stored, err := repo.GetWaterBill(ctx, unit.ID, 2025, 8)
	require.NoError(t, err)
	require.Equal(t, bill.ID, stored.ID)
}

func TestGenerateBillNeedsTwoReadings(t *testing.T) {
	repo := newTestStorage(t)
	unit := seedWaterClient(t, repo)
	svc := NewWaterService(repo, nil)
	ctx := context.Background()

	_, err := svc.RecordReading(ctx, core.WaterReading{
		ClientID: unit.ClientID, UnitID: unit.ID,
		Date: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), Reading: 100,
	})
	require.NoError(t, err)

	_, err = svc.GenerateBill(ctx, unit.ClientID, unit.ID, 2025, 7)
	require.ErrorIs(t, err, ErrInsufficientReadings)
}

func TestApplyPenalties(t *testing.T) {
	repo := newTestStorage(t)
	unit := seedWaterClient(t, repo)
	svc := NewWaterService(repo, nil)
	ctx := context.Background()

	bill := core.WaterBill{
		ID: "bill-overdue", ClientID: unit.ClientID, UnitID: unit.ID,
		Year: 2025, Month: 6, Consumption: 10,
		Amount:  core.Money{Centavos: 25000},
		Service: core.Money{Centavos: 5000},
		DueDate: time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.CreateWaterBill(ctx, bill))

	// Two full months past due at 5% per month, compounded:
	// 30000 -> 31500 -> 33075, so the penalty is 3075.
	updated, err := svc.ApplyPenalties(ctx, unit.ClientID, time.Date(2025, 9, 16, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, 1, updated)

	got, err := repo.GetWaterBill(ctx, unit.ID, 2025, 6)
	require.NoError(t, err)
	require.Equal(t, int64(3075), got.Penalty.Centavos)

	// Re-running with the same rate and date changes nothing.
	updated, err = svc.ApplyPenalties(ctx, unit.ClientID, time.Date(2025, 9, 16, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Zero(t, updated)

	// A third month compounds on the accrued total: 33075 + 1653 = 34728.
	updated, err = svc.ApplyPenalties(ctx, unit.ClientID, time.Date(2025, 10, 16, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, 1, updated)

	got, err = repo.GetWaterBill(ctx, unit.ID, 2025, 6)
	require.NoError(t, err)
	require.Equal(t, int64(4728), got.Penalty.Centavos)
}

func TestRecordBillPayment(t *testing.T) {
	repo := newTestStorage(t)
	unit := seedWaterClient(t, repo)
	svc := NewWaterService(repo, nil)
	ctx := context.Background()

	bill := core.WaterBill{
		ID: "bill-1", ClientID: unit.ClientID, UnitID: unit.ID,
		Year: 2025, Month: 8, Consumption: 12,
		Amount:  core.Money{Centavos: 30000},
		Service: core.Money{Centavos: 5000},
		Penalty: core.Money{Centavos: 1750},
		DueDate: time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.CreateWaterBill(ctx, bill))

	txn, err := svc.RecordBillPayment(ctx, unit.ClientID, unit.ID, 2025, 8, time.Time{})
	require.NoError(t, err)
	require.Equal(t, int64(36750), txn.Amount.Centavos)
	require.Equal(t, "Water", txn.Category)

	got, err := repo.GetWaterBill(ctx, unit.ID, 2025, 8)
	require.NoError(t, err)
	require.True(t, got.Paid)

	// Paying twice is rejected.
	_, err = svc.RecordBillPayment(ctx, unit.ClientID, unit.ID, 2025, 8, time.Time{})
	require.Error(t, err)
}
