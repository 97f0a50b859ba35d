// bill-series-resync realigns bill_number_series counters with the bills actually stored.
// Run it after importing bills or restoring a backup so new numbers continue from the
// largest numeric bill number of each series.
//
// Usage (from backend directory):
//
//	go run ./cmd/bill-series-resync -dry-run
//	go run ./cmd/bill-series-resync -series GST -force
//
// By default a counter only moves forward; -force also lowers it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/katariastoneworld/stoneworld_backend/config"
	"github.com/katariastoneworld/stoneworld_backend/models"
	"github.com/katariastoneworld/stoneworld_backend/utils"
	"github.com/katariastoneworld/stoneworld_backend/workflow"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func main() {
	var (
		seriesFlag = flag.String("series", "", "GST or NonGST (default: both)")
		dryRun     = flag.Bool("dry-run", false, "report the changes without writing them")
		force      = flag.Bool("force", false, "allow the counter to move backwards")
	)
	flag.Parse()

	all := []models.BillSeries{models.BillSeriesGST, models.BillSeriesNonGST}
	if s := strings.TrimSpace(*seriesFlag); s != "" {
		series, ok := models.ParseBillSeries(s)
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown series %q (want GST or NonGST)\n", s)
			os.Exit(2)
		}
		all = []models.BillSeries{series}
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	ctx := utils.SetSkipLocationScopeInContext(context.Background(), true)

	failed := false
	for _, series := range all {
		before, after, err := resync(ctx, db, series, *dryRun, *force)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", series, err)
			failed = true
			continue
		}
		switch {
		case before == after:
			fmt.Printf("%s: counter already at %d\n", series, before)
		case *dryRun:
			fmt.Printf("%s: would move counter %d -> %d\n", series, before, after)
		default:
			fmt.Printf("%s: counter moved %d -> %d\n", series, before, after)
		}
	}
	if failed {
		os.Exit(1)
	}
}

// resync holds the series counter row lock while it scans, the same lock bill issuance takes.
func resync(ctx context.Context, db *gorm.DB, series models.BillSeries, dryRun, force bool) (before, after int64, err error) {
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var counter models.BillNumberSeries
		lookupErr := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("series = ?", series).First(&counter).Error
		missing := errors.Is(lookupErr, gorm.ErrRecordNotFound)
		if lookupErr != nil && !missing {
			return lookupErr
		}
		before = counter.LastNumber

		scanned, err := workflow.MaxNumericBillNumber(tx, series)
		if err != nil {
			return err
		}
		after = scanned
		if !force && after < before {
			after = before
		}
		if dryRun || (after == before && !missing) {
			return nil
		}
		if missing {
			return tx.Create(&models.BillNumberSeries{Series: series, LastNumber: after}).Error
		}
		return tx.Model(&models.BillNumberSeries{}).Where("series = ?", series).Update("last_number", after).Error
	})
	return before, after, err
}
