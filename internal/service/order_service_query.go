package service

import (
	"strings"

	"github.com/payledger/internal/models"
	"github.com/payledger/internal/repository"
)

// OrderDetail 管理端订单详情（含佣金流水）
type OrderDetail struct {
	*models.Order
	Commissions []models.CommissionTransaction `json:"commissions"`
}

// GetOrderForAdmin 管理端获取订单详情
func (s *OrderService) GetOrderForAdmin(orderID uint) (*OrderDetail, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, ErrOrderFetchFailed
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	rows, err := s.commissionRepo.ListByOrder(order.ID)
	if err != nil {
		return nil, ErrOrderFetchFailed
	}
	return &OrderDetail{Order: order, Commissions: rows}, nil
}

// GetOrderByNo 按订单号获取订单
func (s *OrderService) GetOrderByNo(orderNo string) (*models.Order, error) {
	orderNo = strings.TrimSpace(orderNo)
	if orderNo == "" {
		return nil, ErrOrderNotFound
	}
	order, err := s.orderRepo.GetByOrderNo(orderNo)
	if err != nil {
		return nil, ErrOrderFetchFailed
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// ListOrdersForAdmin 管理端订单列表
func (s *OrderService) ListOrdersForAdmin(filter repository.OrderListFilter) ([]models.Order, int64, error) {
	orders, total, err := s.orderRepo.List(filter)
	if err != nil {
		return nil, 0, ErrOrderFetchFailed
	}
	return orders, total, nil
}
