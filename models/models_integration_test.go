package models

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/katariastoneworld/stoneworld_backend/config"
	"github.com/katariastoneworld/stoneworld_backend/utils"
	"github.com/redis/go-redis/v9"
)

func TestModels_QueryPaths(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	mysqlName, mysqlPort := startContainer(t, "mysql:8.0", "3306/tcp",
		[]string{"MYSQL_ROOT_PASSWORD=testpw", "MYSQL_DATABASE=stoneworld_test"},
		"mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })
	redisName, redisPort := startContainer(t, "redis:7", "6379/tcp", nil, "redis-cli", "ping")
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "stoneworld_test")
	config.ConnectDatabaseWithRetry()
	MigrateTable()

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:" + redisPort})
	config.SetRedisClient(client)
	t.Cleanup(func() {
		config.SetRedisClient(nil)
		_ = client.Close()
	})

	bhondsi := utils.SetLocationInContext(context.Background(), "Bhondsi")
	tapugada := utils.SetLocationInContext(context.Background(), "Tapugada")

	t.Run("product slug is unique per location", func(t *testing.T) {
		input := func() *NewProduct {
			return &NewProduct{Name: "Slab A", PricePerUnit: decPtr("120"), Quantity: decPtr("10")}
		}
		first, err := CreateProduct(bhondsi, input())
		if err != nil {
			t.Fatalf("CreateProduct: %v", err)
		}
		if first.Slug != "slab-a" {
			t.Fatalf("slug = %q", first.Slug)
		}
		if _, err := CreateProduct(bhondsi, input()); !utils.IsCategory(err, utils.ErrValidationFailed) {
			t.Fatalf("expected duplicate slug rejection, got %v", err)
		}
		if _, err := CreateProduct(tapugada, input()); err != nil {
			t.Fatalf("same slug in another location: %v", err)
		}

		// an update must not reuse another product's slug, but may keep its own
		second, err := CreateProduct(bhondsi, &NewProduct{Name: "Slab B", PricePerUnit: decPtr("90"), Quantity: decPtr("4")})
		if err != nil {
			t.Fatalf("CreateProduct: %v", err)
		}
		clash := &NewProduct{Name: "Slab B", Slug: "slab-a", PricePerUnit: decPtr("90"), Quantity: decPtr("4")}
		if _, err := UpdateProduct(bhondsi, second.ID, clash); !utils.IsCategory(err, utils.ErrValidationFailed) {
			t.Fatalf("expected slug clash on update, got %v", err)
		}
		updated, err := UpdateProduct(bhondsi, first.ID, &NewProduct{Name: "Slab A", IsActive: utils.NewFalse(),
			PricePerUnit: decPtr("125"), Quantity: decPtr("10")})
		if err != nil {
			t.Fatalf("UpdateProduct: %v", err)
		}
		if *updated.IsActive || !updated.Quantity.Equal(dec("10")) || !updated.PricePerUnit.Equal(dec("125")) {
			t.Fatalf("updated product = %+v", updated)
		}
		other := &NewProduct{Name: "Slab Z", PricePerUnit: decPtr("90"), Quantity: decPtr("4")}
		if _, err := UpdateProduct(tapugada, second.ID, other); !errors.Is(err, utils.ErrorRecordNotFound) {
			t.Fatalf("cross-location update: %v", err)
		}
	})

	t.Run("client purchase payments newest first", func(t *testing.T) {
		purchase, err := CreateClientPurchase(bhondsi, &NewClientPurchase{ClientName: "Sharma Builders", TotalAmount: dec("50000")})
		if err != nil {
			t.Fatalf("CreateClientPurchase: %v", err)
		}
		march1 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.Local)
		march5 := time.Date(2024, 3, 5, 0, 0, 0, 0, time.Local)
		oldest, err := AddClientPurchasePayment(bhondsi, purchase.ID, &NewClientPurchasePayment{Amount: dec("1000"), Date: &Date{Time: march1}})
		if err != nil {
			t.Fatalf("AddClientPurchasePayment: %v", err)
		}
		if _, err := AddClientPurchasePayment(bhondsi, purchase.ID, &NewClientPurchasePayment{Amount: dec("0")}); !utils.IsCategory(err, utils.ErrValidationFailed) {
			t.Fatalf("expected zero amount rejection, got %v", err)
		}

		// same payment date, ordered by creation time
		created := time.Now().Add(-time.Hour).Truncate(time.Second)
		early := ClientPurchasePayment{ClientPurchaseId: purchase.ID, Amount: dec("2000"), Date: march5, Location: "Bhondsi", CreatedAt: created}
		late := ClientPurchasePayment{ClientPurchaseId: purchase.ID, Amount: dec("3000"), Date: march5, Location: "Bhondsi", CreatedAt: created.Add(time.Minute)}
		db := config.GetDB().WithContext(bhondsi)
		if err := db.Create(&early).Error; err != nil {
			t.Fatalf("create payment: %v", err)
		}
		if err := db.Create(&late).Error; err != nil {
			t.Fatalf("create payment: %v", err)
		}

		payments, err := GetClientPurchasePayments(bhondsi, purchase.ID)
		if err != nil {
			t.Fatalf("GetClientPurchasePayments: %v", err)
		}
		want := []int{late.ID, early.ID, oldest.ID}
		if len(payments) != len(want) {
			t.Fatalf("got %d payments, want %d", len(payments), len(want))
		}
		for i, id := range want {
			if payments[i].ID != id {
				t.Fatalf("payments[%d] = %d, want %d", i, payments[i].ID, id)
			}
		}
		if _, err := GetClientPurchasePayments(tapugada, purchase.ID); !errors.Is(err, utils.ErrorRecordNotFound) {
			t.Fatalf("cross-location payments: %v", err)
		}
	})

	t.Run("hero writes invalidate the active cache", func(t *testing.T) {
		hero, err := CreateHero(bhondsi, &NewHero{Title: "Italian Marble", ImageUrl: "heroes/marble.jpg"})
		if err != nil {
			t.Fatalf("CreateHero: %v", err)
		}
		heroes, err := GetActiveHeroes(bhondsi)
		if err != nil || len(heroes) != 1 {
			t.Fatalf("GetActiveHeroes = %d, %v", len(heroes), err)
		}
		cached, err := utils.RetrieveRedisList[Hero]("active")
		if err != nil || len(cached) != 1 {
			t.Fatalf("cache after read = %d, %v", len(cached), err)
		}

		if _, err := UpdateHero(bhondsi, hero.ID, &NewHero{Title: "Italian Marble", ImageUrl: "heroes/marble.jpg", IsActive: utils.NewFalse()}); err != nil {
			t.Fatalf("UpdateHero: %v", err)
		}
		cached, err = utils.RetrieveRedisList[Hero]("active")
		if err != nil || cached != nil {
			t.Fatalf("cache after write = %v, %v", cached, err)
		}
		heroes, err = GetActiveHeroes(bhondsi)
		if err != nil || len(heroes) != 0 {
			t.Fatalf("GetActiveHeroes after deactivate = %d, %v", len(heroes), err)
		}
	})

	t.Run("category writes invalidate the active cache", func(t *testing.T) {
		if _, err := CreateCategory(bhondsi, &NewCategory{Name: "Granite", CategoryType: "Flooring"}); err != nil {
			t.Fatalf("CreateCategory: %v", err)
		}
		if _, err := GetCategories(bhondsi, "", true); err != nil {
			t.Fatalf("GetCategories: %v", err)
		}
		if _, err := CreateCategory(bhondsi, &NewCategory{Name: "Kota", CategoryType: "FLOORING"}); err != nil {
			t.Fatalf("CreateCategory: %v", err)
		}
		cached, err := utils.RetrieveRedisList[Category]("active")
		if err != nil || cached != nil {
			t.Fatalf("cache after write = %v, %v", cached, err)
		}
		flooring, err := GetCategories(bhondsi, "Flooring", true)
		if err != nil || len(flooring) != 2 {
			t.Fatalf("GetCategories(Flooring) = %d, %v", len(flooring), err)
		}
	})

	t.Run("customer update keeps omitted fields", func(t *testing.T) {
		customer, err := CreateCustomer(bhondsi, &NewCustomer{Phone: "9876543210", Name: strPtr("Ravi"), Gstin: strPtr("06ABCDE1234F1Z5")})
		if err != nil {
			t.Fatalf("CreateCustomer: %v", err)
		}
		updated, err := UpdateCustomer(bhondsi, customer.ID, &NewCustomer{Address: strPtr("Sector 49")})
		if err != nil {
			t.Fatalf("UpdateCustomer: %v", err)
		}
		if updated.Name != "Ravi" || updated.Gstin != "06ABCDE1234F1Z5" || updated.Address != "Sector 49" {
			t.Fatalf("updated customer = %+v", updated)
		}
		if _, err := CreateCustomer(tapugada, &NewCustomer{Phone: "9876543210"}); !utils.IsCategory(err, utils.ErrValidationFailed) {
			t.Fatalf("expected phone uniqueness across locations, got %v", err)
		}
	})
}

func startContainer(t *testing.T, image, portProto string, env []string, ready ...string) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("stoneworld-models-test-%d", time.Now().UnixNano())
	args := []string{"run", "-d", "--name", name, "-p", "127.0.0.1:0:" + strings.TrimSuffix(portProto, "/tcp")}
	for _, e := range env {
		args = append(args, "-e", e)
	}
	out, err := dockerRun(append(args, image)...)
	if err != nil {
		t.Fatalf("start %s container: %v\n%s", image, err, out)
	}
	port, err := dockerHostPort(name, portProto)
	if err != nil {
		t.Fatalf("%s docker port: %v", image, err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := dockerRun(append([]string{"exec", name}, ready...)...); err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("%s did not become ready", image)
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	m := regexp.MustCompile(`:(\d+)`).FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	b, err := exec.Command("docker", args...).CombinedOutput()
	return string(b), err
}
