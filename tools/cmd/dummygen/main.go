// tools/cmd/dummygen/main.go
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/example/insurance-portal/internal/config"
	"github.com/example/insurance-portal/internal/store"
	"github.com/example/insurance-portal/pkg/logging"
)

var products = []struct {
	name    string
	premium int64
}{
	{"Bảo hiểm sức khỏe toàn diện", 2_500_000},
	{"Bảo hiểm tai nạn cá nhân", 350_000},
	{"Bảo hiểm xe máy", 66_000},
	{"Bảo hiểm ô tô vật chất", 8_900_000},
	{"Bảo hiểm du lịch quốc tế", 420_000},
}

func generate(rng *rand.Rand, n, users int) []*store.Contract {
	out := make([]*store.Contract, 0, n)
	for i := 0; i < n; i++ {
		p := products[rng.Intn(len(products))]
		out = append(out, &store.Contract{
			ID:             uuid.NewString(),
			ContractNumber: fmt.Sprintf("HD-%06d", i+1),
			UserID:         fmt.Sprintf("user-%03d", rng.Intn(users)+1),
			ProductName:    p.name,
			Premium:        p.premium,
			Status:         store.StatusAwaitingPayment,
		})
	}
	return out
}

func writeCSV(w io.Writer, contracts []*store.Contract) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"id", "contract_number", "user_id", "product_name", "premium", "status"})
	for _, c := range contracts {
		row := []string{c.ID, c.ContractNumber, c.UserID, c.ProductName, strconv.FormatInt(c.Premium, 10), string(c.Status)}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func main() {
	n := flag.Int("n", 100, "number of contracts")
	users := flag.Int("users", 10, "number of distinct owners")
	out := flag.String("out", "tests/data/dummy_contracts.csv", "CSV output path, empty to skip")
	seedDB := flag.Bool("db", true, "insert contracts into DATABASE_URL")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flag.Parse()

	cfg := config.Load()
	logger := logging.New("dummygen", cfg.LogLevel)

	contracts := generate(rand.New(rand.NewSource(*seed)), *n, *users)

	if *out != "" {
		if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
			logger.WithError(err).Fatal("create output dir")
		}
		f, err := os.Create(*out)
		if err != nil {
			logger.WithError(err).Fatal("create csv")
		}
		if err := writeCSV(f, contracts); err != nil {
			logger.WithError(err).Fatal("write csv")
		}
		_ = f.Close()
		logger.Infof("generated %s (%d rows + header)", *out, len(contracts))
	}

	if !*seedDB {
		return
	}
	st, err := store.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("open store")
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.Migrate(ctx); err != nil {
		logger.WithError(err).Fatal("migrate store")
	}
	for _, c := range contracts {
		if err := st.CreateContract(ctx, c); err != nil {
			logger.WithError(err).WithField("contract_id", c.ID).Fatal("insert contract")
		}
	}
	logger.Infof("seeded %d contracts into %s", len(contracts), cfg.DBDriver)
}
