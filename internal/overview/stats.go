package overview

import (
	"github.com/shopspring/decimal"
	flatdomain "github.com/smallbiznis/societyops/internal/flat/domain"
	maintenancedomain "github.com/smallbiznis/societyops/internal/maintenance/domain"
)

type OccupancyStats struct {
	Total          int `json:"total"`
	Occupied       int `json:"occupied"`
	Vacant         int `json:"vacant"`
	Pending        int `json:"pending"`
	OwnerOccupied  int `json:"owner_occupied"`
	TenantOccupied int `json:"tenant_occupied"`
}

type PaymentStats struct {
	Total           int                                     `json:"total"`
	ByStatus        map[maintenancedomain.PaymentStatus]int `json:"by_status"`
	ByMethod        map[maintenancedomain.PaymentMethod]int `json:"by_method"`
	CollectedAmount decimal.Decimal                         `json:"collected_amount"`
	PenaltyAmount   decimal.Decimal                         `json:"penalty_amount"`
	LatePayments    int                                     `json:"late_payments"`
}

// ComputeOccupancyStats counts flats by status. Owner and tenant counts only
// include occupied flats.
func ComputeOccupancyStats(flats []flatdomain.Flat) OccupancyStats {
	var stats OccupancyStats
	for _, f := range flats {
		stats.Total++
		switch f.OccupancyStatus {
		case flatdomain.OccupancyOccupied:
			stats.Occupied++
			if f.OwnershipType == nil {
				continue
			}
			switch *f.OwnershipType {
			case flatdomain.AssignmentOwner:
				stats.OwnerOccupied++
			case flatdomain.AssignmentTenant:
				stats.TenantOccupied++
			}
		case flatdomain.OccupancyVacant:
			stats.Vacant++
		case flatdomain.OccupancyPending:
			stats.Pending++
		}
	}
	return stats
}

// ComputePaymentStats summarizes payments. Collected amounts count paid and
// verified payments only.
func ComputePaymentStats(payments []maintenancedomain.Payment) PaymentStats {
	stats := PaymentStats{
		ByStatus:        map[maintenancedomain.PaymentStatus]int{},
		ByMethod:        map[maintenancedomain.PaymentMethod]int{},
		CollectedAmount: decimal.Zero,
		PenaltyAmount:   decimal.Zero,
	}
	for _, p := range payments {
		stats.Total++
		stats.ByStatus[p.Status]++
		stats.ByMethod[p.PaymentMethod]++
		if p.DaysLate > 0 {
			stats.LatePayments++
		}
		stats.PenaltyAmount = stats.PenaltyAmount.Add(p.PenaltyAmount)
		if p.Status == maintenancedomain.StatusPaid || p.Status == maintenancedomain.StatusVerified {
			stats.CollectedAmount = stats.CollectedAmount.Add(p.TotalAmount)
		}
	}
	return stats
}
