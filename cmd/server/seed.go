package main

import (
	"context"
	"fmt"

	"rentflow/internal/database"
	"rentflow/internal/models"
	"rentflow/internal/services"
	"rentflow/pkg/config"
	"rentflow/pkg/jwt"
	"rentflow/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	seedAdminID    string
	seedAdminEmail string
	seedDemo       bool

	tokenExternalID string
	tokenEmail      string

	seedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Create the default admin user (and optional demo data)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := bootstrap()
			if err != nil {
				return err
			}
			defer database.Close()
			if err := database.Migrate(); err != nil {
				return err
			}
			return seedData(cmd.Context(), database.GetDB(), cfg)
		},
	}

	tokenCmd = &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for a synced user (local development)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if tokenExternalID == "" {
				return fmt.Errorf("--external-id 不能为空")
			}
			token, err := jwt.GetJWTManager().GenerateToken(tokenExternalID, tokenEmail)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
)

func init() {
	seedCmd.Flags().StringVar(&seedAdminID, "admin-id", "local_admin", "external id of the default admin")
	seedCmd.Flags().StringVar(&seedAdminEmail, "admin-email", "admin@rentflow.local", "email of the default admin")
	seedCmd.Flags().BoolVar(&seedDemo, "demo", false, "also create a demo landlord, property and units")

	tokenCmd.Flags().StringVar(&tokenExternalID, "external-id", "", "identity provider user id")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "email claim")
}

// seedData 初始化种子数据
func seedData(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	appLogger := logger.GetLogger()
	appLogger.Info("Starting seed data initialization...")

	identity := services.NewIdentityService(db, cfg.Identity)

	// 1. 默认管理员
	admin, created, err := identity.SyncUser(ctx, services.SyncInput{
		ExternalID:    seedAdminID,
		Name:          "系统管理员",
		Email:         seedAdminEmail,
		RequestedRole: string(models.RoleAdmin),
	})
	if err != nil {
		return fmt.Errorf("创建默认管理员失败: %v", err)
	}
	if !created {
		appLogger.Info("默认管理员已存在，跳过创建")
	}

	// 2. 演示数据
	if seedDemo {
		if err := createDemoData(ctx, db, identity, admin); err != nil {
			return fmt.Errorf("创建演示数据失败: %v", err)
		}
	}

	appLogger.Info("Seed data initialization completed successfully")
	return nil
}

// createDemoData 一个房东、一个物业、三个空置单元
func createDemoData(ctx context.Context, db *gorm.DB, identity *services.IdentityService, admin *models.User) error {
	landlord, _, err := identity.SyncUser(ctx, services.SyncInput{
		ExternalID:    "demo_landlord",
		Name:          "演示房东",
		Email:         "landlord@rentflow.local",
		RequestedRole: string(models.RoleLandlord),
	})
	if err != nil {
		return err
	}

	var count int64
	db.Model(&models.Property{}).Where("owner_id = ?", landlord.ID).Count(&count)
	if count > 0 {
		logger.GetLogger().Info("演示物业已存在，跳过创建")
		return nil
	}

	actor := services.Actor{UserID: admin.ID, Role: admin.Role}
	property, err := services.NewPropertyService(db).Create(ctx, actor, &models.CreatePropertyRequest{
		OwnerID: landlord.ID,
		Name:    "示例公寓",
		Address: "幸福路 1 号",
		City:    "Nairobi",
		Type:    models.PropertyTypeApartment,
	})
	if err != nil {
		return err
	}

	units := services.NewUnitService(db)
	for i, rent := range []int64{15000, 18000, 25000} {
		_, err := units.Create(ctx, actor, property.ID, &models.CreateUnitRequest{
			UnitNumber:    fmt.Sprintf("A%d", i+1),
			Bedrooms:      i + 1,
			Bathrooms:     1,
			RentAmount:    decimal.NewFromInt(rent),
			DepositAmount: decimal.NewFromInt(rent),
		})
		if err != nil {
			return err
		}
	}
	return nil
}
