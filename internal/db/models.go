package db

import "github.com/freshfoldapp/freshfold/internal/models"

type Order = models.Order
type OrderStatus = models.OrderStatus
type Coupon = models.Coupon

const (
	StatusPending        = models.StatusPending
	StatusConfirmed      = models.StatusConfirmed
	StatusPickedUp       = models.StatusPickedUp
	StatusInProcess      = models.StatusInProcess
	StatusReady          = models.StatusReady
	StatusOutForDelivery = models.StatusOutForDelivery
	StatusDelivered      = models.StatusDelivered
	StatusCancelled      = models.StatusCancelled
)
