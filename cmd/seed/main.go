package main

import (
	"fmt"

	"github.com/payledger/internal/authz"
	"github.com/payledger/internal/config"
	"github.com/payledger/internal/constants"
	"github.com/payledger/internal/logger"
	"github.com/payledger/internal/models"
	"github.com/payledger/internal/service"

	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

// seedAffiliate 种子推广人
type seedAffiliate struct {
	Email        string
	Name         string
	Code         string
	Level        string
	ParentEmail  string
	RateOverride float64
	StaffRate    float64
}

var seedAffiliates = []seedAffiliate{
	{Email: "staff@payledger.local", Name: "Staff", Code: "STAFF01", Level: constants.AffiliateLevelStaff, StaffRate: 2},
	{Email: "collab-a@payledger.local", Name: "Collaborator A", Code: "COLLABA", Level: constants.AffiliateLevelCollaborator, ParentEmail: "staff@payledger.local", RateOverride: 10},
	{Email: "collab-b@payledger.local", Name: "Collaborator B", Code: "COLLABB", Level: constants.AffiliateLevelCollaborator, ParentEmail: "staff@payledger.local", RateOverride: 10},
	{Email: "buyer@payledger.local", Name: "Buyer"},
}

// seedAdminPassword 种子管理员初始密码，仅用于本地环境
const seedAdminPassword = "payledger123"

var seedAdmins = []struct {
	Username string
	IsSuper  bool
	Roles    []string
}{
	{Username: "root", IsSuper: true},
	{Username: "finance", Roles: []string{"finance"}},
	{Username: "support", Roles: []string{"support"}},
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	ids := map[string]uint{}
	for _, item := range seedAffiliates {
		user, err := upsertUser(models.DB, item, ids)
		if err != nil {
			stdLog.Fatalf("Failed to seed user %s: %v", item.Email, err)
		}
		ids[item.Email] = user.ID
		stdLog.Printf("User ready: id=%d email=%s code=%s", user.ID, user.Email, item.Code)
	}

	authzService, err := authz.NewService(models.DB)
	if err != nil {
		stdLog.Fatalf("Failed to init authz: %v", err)
	}
	if err := authzService.BootstrapBuiltinRoles(); err != nil {
		stdLog.Fatalf("Failed to bootstrap roles: %v", err)
	}
	authService := service.NewAuthService(&cfg.JWT, nil)
	for _, item := range seedAdmins {
		hash, err := authService.HashPassword(seedAdminPassword)
		if err != nil {
			stdLog.Fatalf("Failed to hash password for %s: %v", item.Username, err)
		}
		var admin models.Admin
		if err := models.DB.Where(models.Admin{Username: item.Username}).
			Attrs(models.Admin{IsSuper: item.IsSuper, PasswordHash: hash}).
			FirstOrCreate(&admin).Error; err != nil {
			stdLog.Fatalf("Failed to seed admin %s: %v", item.Username, err)
		}
		if len(item.Roles) > 0 {
			if err := authzService.SetAdminRoles(admin.ID, item.Roles); err != nil {
				stdLog.Fatalf("Failed to assign roles to %s: %v", item.Username, err)
			}
		}
		token, expiresAt, err := authService.GenerateJWT(&admin)
		if err != nil {
			stdLog.Fatalf("Failed to sign token for %s: %v", item.Username, err)
		}
		fmt.Printf("admin=%s password=%s id=%d expires=%s\n  Bearer %s\n", admin.Username, seedAdminPassword, admin.ID, expiresAt.Format("2006-01-02 15:04"), token)
	}
}

func upsertUser(db *gorm.DB, item seedAffiliate, ids map[string]uint) (*models.User, error) {
	var user models.User
	if err := db.Where(models.User{Email: item.Email}).
		Attrs(models.User{DisplayName: item.Name, Status: constants.UserStatusActive}).
		FirstOrCreate(&user).Error; err != nil {
		return nil, err
	}
	if item.Code == "" {
		return &user, nil
	}
	updates := map[string]interface{}{
		"referral_code":   item.Code,
		"affiliate_level": item.Level,
	}
	if parentID, ok := ids[item.ParentEmail]; ok {
		updates["parent_staff_id"] = parentID
	}
	if item.RateOverride > 0 {
		updates["commission_rate_override"] = models.RateFromFloat(item.RateOverride)
	}
	if item.StaffRate > 0 {
		updates["staff_commission_rate"] = models.RateFromFloat(item.StaffRate)
	}
	if err := db.Model(&user).Updates(updates).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
