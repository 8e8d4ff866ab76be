package models

import "errors"

var (
	// ErrNotFound транзакция, подписка или пользователь не существует.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState транзакция уже не в статусе pending.
	ErrInvalidState = errors.New("invalid state")
	// ErrUnknownTariff тариф не найден в каталоге или недоступен для операции.
	ErrUnknownTariff = errors.New("unknown tariff")
	// ErrActiveSubscription у пользователя уже есть действующая подписка.
	ErrActiveSubscription = errors.New("user already has an active subscription")
	// ErrTrialUsed пробный период уже был использован.
	ErrTrialUsed = errors.New("trial already used")
	// ErrInsufficientBalance на балансе недостаточно средств.
	ErrInsufficientBalance = errors.New("insufficient balance")
)
