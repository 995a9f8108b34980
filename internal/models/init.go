package models

import (
	"strings"

	"github.com/payledger/internal/logger"

	"golang.org/x/crypto/bcrypt"
)

// InitDefaultAdmin 无管理员时创建默认超级管理员
func InitDefaultAdmin(username, password string) error {
	var count int64
	if err := DB.Model(&Admin{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	username = strings.TrimSpace(username)
	if username == "" {
		username = "admin"
	}
	if password == "" {
		password = "admin123"
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	admin := Admin{Username: username, PasswordHash: string(hash), IsSuper: true}
	if err := DB.Create(&admin).Error; err != nil {
		return err
	}
	logger.Warnw("default_admin_created", "admin_id", admin.ID, "username", username)
	return nil
}
