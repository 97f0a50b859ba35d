package workflow

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/katariastoneworld/stoneworld_backend/config"
	"github.com/katariastoneworld/stoneworld_backend/models"
	"github.com/katariastoneworld/stoneworld_backend/utils"
)

func TestGormBillingStore_ConcurrentIssuance(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "stoneworld_test")

	config.ConnectDatabaseWithRetry()
	models.MigrateTable()
	db := config.GetDB()

	ctx := utils.SetLocationInContext(context.Background(), testLocation)
	product := models.Product{Name: "Slab A", Slug: "slab-a", Unit: "sqft", Quantity: dec("40"), Location: testLocation,
		IsActive: utils.NewTrue(), IsFeatured: utils.NewFalse()}
	if err := db.WithContext(ctx).Create(&product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	walkIn := models.Customer{Phone: "9000000000", Name: "Walk-in", Location: testLocation}
	if err := db.WithContext(ctx).Create(&walkIn).Error; err != nil {
		t.Fatalf("create customer: %v", err)
	}
	// a legacy bill number the counter must continue from
	legacy := models.GstBill{BillHeader: models.BillHeader{
		BillNumber: "100", CustomerId: walkIn.ID, BillDate: time.Now(), PaymentStatus: models.PaymentStatusPaid,
	}}
	if err := db.WithContext(ctx).Omit("Customer").Create(&legacy).Error; err != nil {
		t.Fatalf("create legacy bill: %v", err)
	}

	// redis is not connected, so the advisory lock path serializes the series
	bi := NewBillIssuer(NewGormBillingStore(db), NewDefaultSeriesLocker(db), nil)

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	numbers := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := slabRequest("18", "3")
			req.Items[0].ProductId = intPtr(product.ID)
			req.CustomerMobileNumber = fmt.Sprintf("98765432%02d", i)
			view, err := bi.Issue(ctx, req)
			if err != nil {
				errs <- err
				return
			}
			numbers <- view.BillNumber
		}(i)
	}
	wg.Wait()
	close(errs)
	close(numbers)

	insufficient := 0
	for err := range errs {
		if !utils.IsCategory(err, utils.ErrInsufficientStock) {
			t.Fatalf("Issue: %v", err)
		}
		insufficient++
	}
	seen := map[string]bool{}
	for num := range numbers {
		if seen[num] {
			t.Fatalf("bill number %s issued twice", num)
		}
		seen[num] = true
	}
	// 40 / 3 = 13 bills fit, so all 10 succeed
	if insufficient != 0 || len(seen) != n {
		t.Fatalf("expected %d bills, got %d (insufficient=%d)", n, len(seen), insufficient)
	}
	for i := 101; i <= 100+n; i++ {
		if !seen[fmt.Sprint(i)] {
			t.Fatalf("expected bill number %d", i)
		}
	}

	var reloaded models.Product
	if err := db.WithContext(ctx).First(&reloaded, product.ID).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	assertDec(t, "stock", reloaded.Quantity, "10")

	bill, err := models.GetBillByNumber(ctx, "101")
	if err != nil {
		t.Fatalf("GetBillByNumber: %v", err)
	}
	assertDec(t, "stored total", bill.TotalAmount, "354")
	if len(bill.Items) != 1 || bill.Customer == nil {
		t.Fatalf("expected items and customer preloaded, got %+v", bill)
	}

	t.Run("both series for new customers on the pool", func(t *testing.T) {
		var isolation string
		if err := db.Raw("SELECT @@SESSION.transaction_isolation").Scan(&isolation).Error; err != nil {
			t.Fatalf("read isolation: %v", err)
		}
		if isolation != "READ-COMMITTED" {
			t.Fatalf("pooled connection isolation = %s", isolation)
		}

		shared := models.Product{Name: "Slab C", Slug: "slab-c", Unit: "sqft", Quantity: dec("100"), Location: testLocation,
			IsActive: utils.NewTrue(), IsFeatured: utils.NewFalse()}
		if err := db.WithContext(ctx).Create(&shared).Error; err != nil {
			t.Fatalf("create product: %v", err)
		}
		t.Setenv("BILL_NUMBER_MAX_RETRIES", "5")
		bi := NewBillIssuer(NewGormBillingStore(db), NewDefaultSeriesLocker(db), nil)

		const m = 12
		type issued struct {
			series models.BillSeries
			number string
		}
		var wg sync.WaitGroup
		errs := make(chan error, m)
		results := make(chan issued, m)
		for i := 0; i < m; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				tax := "18"
				if i%2 == 1 {
					tax = "0"
				}
				req := slabRequest(tax, "2")
				req.Items[0].ProductId = intPtr(shared.ID)
				req.CustomerMobileNumber = fmt.Sprintf("91234567%02d", i)
				view, err := bi.Issue(ctx, req)
				if err != nil {
					errs <- err
					return
				}
				results <- issued{series: view.BillType, number: view.BillNumber}
			}(i)
		}
		wg.Wait()
		close(errs)
		close(results)
		for err := range errs {
			t.Fatalf("Issue: %v", err)
		}
		seen := map[models.BillSeries]map[string]bool{models.BillSeriesGST: {}, models.BillSeriesNonGST: {}}
		for r := range results {
			if seen[r.series][r.number] {
				t.Fatalf("%s bill number %s issued twice", r.series, r.number)
			}
			seen[r.series][r.number] = true
		}
		for i := 1; i <= m/2; i++ {
			if gst := fmt.Sprint(100 + n + i); !seen[models.BillSeriesGST][gst] {
				t.Fatalf("missing GST bill %s in %v", gst, seen[models.BillSeriesGST])
			}
			if !seen[models.BillSeriesNonGST][fmt.Sprint(i)] {
				t.Fatalf("missing NonGST bill %d in %v", i, seen[models.BillSeriesNonGST])
			}
		}

		var after models.Product
		if err := db.WithContext(ctx).First(&after, shared.ID).Error; err != nil {
			t.Fatalf("reload product: %v", err)
		}
		assertDec(t, "shared stock", after.Quantity, "76")
		var customers int64
		if err := db.WithContext(ctx).Model(&models.Customer{}).Where("phone LIKE ?", "91234567%").Count(&customers).Error; err != nil {
			t.Fatalf("count customers: %v", err)
		}
		if customers != m {
			t.Fatalf("expected %d new customers, got %d", m, customers)
		}
	})
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("stoneworld-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=stoneworld_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
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
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
