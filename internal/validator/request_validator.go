package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// 入力が不正
	ErrInvalidInput = errors.New("invalid input")
)

const (
	// payments.txn_ref の列幅
	maxReferenceLength = 100
	maxReasonLength    = 255
)

var bankCodeRe = regexp.MustCompile(`^[A-Za-z0-9_]{2,20}$`)

func invalid(field string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, field)
}

// 支払い作成（VNPAY/PayPal/Stripe/COD/VietQR共通）の入力を検証
func ValidatePaymentCreate(orderID int64, bankCode string, locale string) error {
	if orderID <= 0 {
		return invalid("order_id")
	}

	// bank_codeは任意。指定するなら英数字のみ
	if b := strings.TrimSpace(bankCode); b != "" && !bankCodeRe.MatchString(b) {
		return invalid("bank_code")
	}

	switch strings.TrimSpace(locale) {
	case "", "vn", "en":
	default:
		return invalid("locale")
	}
	return nil
}

// txn_ref / PayPalのtoken
func ValidateReference(ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" || len(ref) > maxReferenceLength {
		return invalid("txn_ref")
	}
	return nil
}

// キャンセル理由は任意
func ValidateCancelReason(reason string) error {
	if utf8.RuneCountInString(strings.TrimSpace(reason)) > maxReasonLength {
		return invalid("reason")
	}
	return nil
}
