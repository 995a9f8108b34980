package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDecodeDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	cfg, err := Decode(v)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if cfg.Payment.RefPrefix != "GO" {
		t.Fatalf("unexpected ref prefix: %s", cfg.Payment.RefPrefix)
	}
	if cfg.Payment.AmountWindowHours != 24 {
		t.Fatalf("unexpected amount window: %d", cfg.Payment.AmountWindowHours)
	}
	if cfg.Commission.DefaultRate != 10 || cfg.Commission.DefaultStaffRate != 2 {
		t.Fatalf("unexpected default rates: %+v", cfg.Commission)
	}
	if cfg.Order.PaymentExpireDuration() != 0 {
		t.Fatalf("expiry should be disabled by default")
	}
	if cfg.Server.Addr() != "0.0.0.0:8080" {
		t.Fatalf("unexpected addr: %s", cfg.Server.Addr())
	}
}

func TestDecodeYAMLOverrides(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	yml := `
order:
  payment_expire_minutes: 30
commission:
  default_rate: 12.5
kafka:
  enabled: true
  brokers: ["k1:9092", "k2:9092"]
`
	if err := v.ReadConfig(strings.NewReader(yml)); err != nil {
		t.Fatalf("read yaml failed: %v", err)
	}
	cfg, err := Decode(v)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if cfg.Order.PaymentExpireDuration() != 30*time.Minute {
		t.Fatalf("unexpected expiry: %s", cfg.Order.PaymentExpireDuration())
	}
	if cfg.Commission.DefaultRate != 12.5 {
		t.Fatalf("unexpected rate: %v", cfg.Commission.DefaultRate)
	}
	if !cfg.Kafka.Enabled || len(cfg.Kafka.Brokers) != 2 {
		t.Fatalf("unexpected kafka config: %+v", cfg.Kafka)
	}
	if cfg.Commission.DefaultStaffRate != 2 {
		t.Fatalf("defaults should survive partial override")
	}
}
