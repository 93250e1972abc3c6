/*
Package factory seeds demo data for local development.

PURPOSE:
  A small org to exercise the engine against: one admin, one manager,
  and two reports with standard yearly allocations. Seeding is skipped
  when the store already holds employees.
*/
package factory

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/sqlite"
)

func standardBalances() map[leave.Category]leave.Balance {
	alloc := func(days int64) leave.Balance {
		return leave.Balance{Allocated: decimal.NewFromInt(days), Used: decimal.Zero}
	}
	return map[leave.Category]leave.Balance{
		leave.CategoryCasual: alloc(12),
		leave.CategorySick:   alloc(10),
		leave.CategoryEarned: alloc(15),
	}
}

// DemoEmployees returns the seed org chart.
func DemoEmployees() []leave.Employee {
	return []leave.Employee{
		{ID: "admin-1", Role: leave.RoleAdmin, Balances: standardBalances()},
		{ID: "mgr-1", Role: leave.RoleManager, ApproverID: "admin-1", Balances: standardBalances()},
		{ID: "emp-1", Role: leave.RoleEmployee, ApproverID: "mgr-1", Balances: standardBalances()},
		{ID: "emp-2", Role: leave.RoleEmployee, ApproverID: "mgr-1", Balances: standardBalances()},
	}
}

// Seed writes the demo org unless the store already has employees.
func Seed(ctx context.Context, store *sqlite.Store) (bool, error) {
	count, err := store.CountEmployees(ctx)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	for _, emp := range DemoEmployees() {
		if err := store.SaveEmployee(ctx, emp); err != nil {
			return false, err
		}
	}
	return true, nil
}
