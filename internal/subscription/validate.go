package subscription

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/subman/internal/model"
)

// MaxAmount は登録できる金額の上限。
var MaxAmount = decimal.NewFromInt(999999)

// 保存先の列幅に合わせた文字数の上限。
const (
	MaxIDLength       = 255
	MaxNameLength     = 255
	MaxCurrencyLength = 8
)

// バリデーションメッセージ
const (
	msgNameRequired        = "Subscription name is required"
	msgAmountPositive      = "Amount must be greater than 0"
	msgAmountTooLarge      = "Amount must not exceed 999999"
	msgNextPaymentRequired = "Next payment date is required"
	msgFrequencyInvalid    = "Frequency must be one of weekly, monthly, quarterly, yearly"
	msgCurrencyRequired    = "Currency is required"
)

var (
	msgIDTooLong       = fmt.Sprintf("ID must be at most %d characters", MaxIDLength)
	msgNameTooLong     = fmt.Sprintf("Subscription name must be at most %d characters", MaxNameLength)
	msgCurrencyTooLong = fmt.Sprintf("Currency must be at most %d characters", MaxCurrencyLength)
)

func validateName(name string) *model.FieldError {
	switch {
	case strings.TrimSpace(name) == "":
		return &model.FieldError{Field: "name", Message: msgNameRequired}
	case utf8.RuneCountInString(name) > MaxNameLength:
		return &model.FieldError{Field: "name", Message: msgNameTooLong}
	}
	return nil
}

func validateCurrency(code string) *model.FieldError {
	switch {
	case strings.TrimSpace(code) == "":
		return &model.FieldError{Field: "currency", Message: msgCurrencyRequired}
	case utf8.RuneCountInString(code) > MaxCurrencyLength:
		return &model.FieldError{Field: "currency", Message: msgCurrencyTooLong}
	}
	return nil
}

func validateAmount(amount decimal.Decimal) *model.FieldError {
	if !amount.IsPositive() {
		return &model.FieldError{Field: "amount", Message: msgAmountPositive}
	}
	if amount.GreaterThan(MaxAmount) {
		return &model.FieldError{Field: "amount", Message: msgAmountTooLarge}
	}
	return nil
}

// ValidateNew は作成入力を検証する。問題が無ければnilを返す。
func ValidateNew(in model.NewSubscription) *model.APIError {
	var fields []model.FieldError
	if utf8.RuneCountInString(in.ID) > MaxIDLength {
		fields = append(fields, model.FieldError{Field: "id", Message: msgIDTooLong})
	}
	if fe := validateName(in.Name); fe != nil {
		fields = append(fields, *fe)
	}
	if fe := validateAmount(in.Amount); fe != nil {
		fields = append(fields, *fe)
	}
	if in.NextPayment.IsZero() {
		fields = append(fields, model.FieldError{Field: "nextPayment", Message: msgNextPaymentRequired})
	}
	if !in.Frequency.Valid() {
		fields = append(fields, model.FieldError{Field: "frequency", Message: msgFrequencyInvalid})
	}
	if fe := validateCurrency(in.Currency); fe != nil {
		fields = append(fields, *fe)
	}
	if len(fields) > 0 {
		return model.NewValidationError(fields)
	}
	return nil
}

// ValidatePatch は部分更新の入力を検証する。指定されたフィールドのみ検査する。
func ValidatePatch(p model.SubscriptionPatch) *model.APIError {
	var fields []model.FieldError
	if p.Name != nil {
		if fe := validateName(*p.Name); fe != nil {
			fields = append(fields, *fe)
		}
	}
	if p.Amount != nil {
		if fe := validateAmount(*p.Amount); fe != nil {
			fields = append(fields, *fe)
		}
	}
	if p.NextPayment != nil && p.NextPayment.IsZero() {
		fields = append(fields, model.FieldError{Field: "nextPayment", Message: msgNextPaymentRequired})
	}
	if p.Frequency != nil && !p.Frequency.Valid() {
		fields = append(fields, model.FieldError{Field: "frequency", Message: msgFrequencyInvalid})
	}
	if p.Currency != nil {
		if fe := validateCurrency(*p.Currency); fe != nil {
			fields = append(fields, *fe)
		}
	}
	if len(fields) > 0 {
		return model.NewValidationError(fields)
	}
	return nil
}
