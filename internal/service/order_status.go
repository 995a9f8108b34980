package service

import (
	"time"

	"github.com/payledger/internal/constants"
	"github.com/payledger/internal/models"
)

// checkOrderTransition 履约状态只能前进（允许跳级），交付前任意状态可取消
func checkOrderTransition(current, target string) error {
	if current == constants.OrderStatusCancelled || current == constants.OrderStatusDelivered {
		return ErrOrderAlreadyFinal
	}
	if target == constants.OrderStatusCancelled {
		if constants.IsPreDeliveredStatus(current) {
			return nil
		}
		return ErrInvalidOrderStatus
	}
	currentRank := constants.OrderStatusRank(current)
	targetRank := constants.OrderStatusRank(target)
	if currentRank < 0 || targetRank < 0 {
		return ErrInvalidOrderStatus
	}
	if targetRank < currentRank {
		return ErrOrderStatusBackward
	}
	return nil
}

// buildStatusTimestamps 目标状态及跳过的中间状态补齐时间戳，已有值不覆盖
func buildStatusTimestamps(order *models.Order, target, reason string, now time.Time) map[string]interface{} {
	updates := map[string]interface{}{"updated_at": now}
	if target == constants.OrderStatusCancelled {
		updates["canceled_at"] = now
		updates["cancel_reason"] = reason
		return updates
	}
	targetRank := constants.OrderStatusRank(target)
	if targetRank >= constants.OrderStatusRank(constants.OrderStatusConfirmed) && order.ConfirmedAt == nil {
		updates["confirmed_at"] = now
	}
	if targetRank >= constants.OrderStatusRank(constants.OrderStatusShipped) && order.ShippedAt == nil {
		updates["shipped_at"] = now
	}
	if targetRank >= constants.OrderStatusRank(constants.OrderStatusDelivered) && order.DeliveredAt == nil {
		updates["delivered_at"] = now
	}
	return updates
}
