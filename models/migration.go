package models

import (
	"log"

	"github.com/katariastoneworld/stoneworld_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Customer{}, &Product{}, &Category{}, &Hero{},
		&GstBill{}, &GstBillItem{}, &NonGstBill{}, &NonGstBillItem{}, &BillNumberSeries{},
		&User{}, &Employee{}, &Expense{}, &ClientPurchase{}, &ClientPurchasePayment{},
		&Seller{}, &StateGstMaster{},
		&NotificationOutbox{}, &IdempotencyKey{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
