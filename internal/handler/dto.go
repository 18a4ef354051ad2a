package handler

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/subman/internal/model"
	"github.com/hitoshi/subman/internal/recurrence"
	"github.com/hitoshi/subman/internal/subscription"
)

// subscriptionResponse はサブスクリプションのAPIレスポンス。
// 保存値に加えて、現在時刻から導出した支払い状況を含む。
type subscriptionResponse struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Amount        json.Number  `json:"amount"`
	Currency      string       `json:"currency"`
	Frequency     string       `json:"frequency"`
	NextPayment   string       `json:"nextPayment"`
	StartDate     string       `json:"startDate,omitempty"`
	AutoRenewal   bool         `json:"autoRenewal"`
	Labels        []string     `json:"labels"`
	URL           string       `json:"url,omitempty"`
	Icon          string       `json:"icon,omitempty"`
	Comment       string       `json:"comment,omitempty"`
	Colors        model.Colors `json:"colors,omitempty"`
	MonthlyAmount json.Number  `json:"monthlyAmount"`
	DaysUntil     int          `json:"daysUntil"`
	DueLabel      string       `json:"dueLabel"`
	IsOverdue     bool         `json:"isOverdue"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// toSubscriptionResponse はドメインのSubscriptionをhandlerのレスポンス型に変換する。
// 自動更新ありの場合、表示する支払日は保存値ではなくnow以降の次回発生日になる。
func toSubscriptionResponse(sub *model.Subscription, n subscription.Normalizer, now time.Time) subscriptionResponse {
	next := sub.NextPayment
	if sub.AutoRenewal {
		next = recurrence.ResolveNextOccurrence(next, sub.Frequency, now)
	}
	resp := subscriptionResponse{
		ID:            sub.ID,
		Name:          sub.Name,
		Amount:        moneyNumber(sub.Amount),
		Currency:      sub.Currency,
		Frequency:     string(sub.Frequency),
		NextPayment:   next.Format(model.DateLayout),
		AutoRenewal:   sub.AutoRenewal,
		Labels:        sub.Labels,
		URL:           sub.URL,
		Icon:          sub.Icon,
		Comment:       sub.Comment,
		Colors:        sub.Colors,
		MonthlyAmount: moneyNumber(subscription.MonthlyEquivalent(sub, n).Round(2)),
		DaysUntil:     recurrence.DaysUntil(next, now),
		DueLabel:      recurrence.FormatDueLabel(next, now),
		IsOverdue:     !sub.AutoRenewal && recurrence.IsOverdue(next, now),
		CreatedAt:     sub.CreatedAt,
		UpdatedAt:     sub.UpdatedAt,
	}
	if sub.StartDate != nil {
		resp.StartDate = sub.StartDate.Format(model.DateLayout)
	}
	if resp.Labels == nil {
		resp.Labels = []string{}
	}
	return resp
}

func toSubscriptionResponses(subs []*model.Subscription, n subscription.Normalizer, now time.Time) []subscriptionResponse {
	out := make([]subscriptionResponse, len(subs))
	for i, sub := range subs {
		out[i] = toSubscriptionResponse(sub, n, now)
	}
	return out
}

func moneyNumber(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

// statsResponse は集計値のAPIレスポンス。金額は基準通貨建てで小数2桁に丸める。
type statsResponse struct {
	Count             int         `json:"count"`
	TotalMonthly      json.Number `json:"totalMonthly"`
	TotalYearly       json.Number `json:"totalYearly"`
	DueThisMonth      json.Number `json:"dueThisMonth"`
	Overdue           int         `json:"overdue"`
	ReferenceCurrency string      `json:"referenceCurrency"`
}

func toStatsResponse(st subscription.Stats, reference string) statsResponse {
	return statsResponse{
		Count:             st.Count,
		TotalMonthly:      moneyNumber(st.TotalMonthly.Round(2)),
		TotalYearly:       moneyNumber(st.TotalYearly.Round(2)),
		DueThisMonth:      moneyNumber(st.DueThisMonth.Round(2)),
		Overdue:           st.Overdue,
		ReferenceCurrency: reference,
	}
}

// calendarEntryResponse はカレンダー上の1件の支払い。
type calendarEntryResponse struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Amount   json.Number `json:"amount"`
	Currency string      `json:"currency"`
}

// calendarResponse は指定年月の支払予定。daysのキーは"YYYY-MM-DD"。
type calendarResponse struct {
	Year  int                                `json:"year"`
	Month int                                `json:"month"`
	Days  map[string][]calendarEntryResponse `json:"days"`
}

func toCalendarResponse(year int, month time.Month, days map[string][]subscription.PaymentEntry) calendarResponse {
	out := calendarResponse{Year: year, Month: int(month), Days: make(map[string][]calendarEntryResponse, len(days))}
	for date, entries := range days {
		list := make([]calendarEntryResponse, len(entries))
		for i, e := range entries {
			list[i] = calendarEntryResponse{
				ID:       e.ID,
				Name:     e.Name,
				Amount:   moneyNumber(e.Amount),
				Currency: e.Currency,
			}
		}
		out.Days[date] = list
	}
	return out
}

// workspaceResponse はワークスペース情報のAPIレスポンス。
type workspaceResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	SortOption string    `json:"sortOption"`
	Shared     bool      `json:"shared"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func toWorkspaceResponse(ws *model.Workspace) workspaceResponse {
	sort := ws.SortOption
	if sort == "" {
		sort = model.DefaultSortOption
	}
	return workspaceResponse{
		ID:         ws.ID,
		Name:       ws.Name,
		SortOption: sort,
		Shared:     ws.ShareToken != "",
		CreatedAt:  ws.CreatedAt,
		UpdatedAt:  ws.UpdatedAt,
	}
}

// shareResponse は共有リンク発行のAPIレスポンス。
type shareResponse struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

// sharedListResponse は共有リンクから参照する読み取り専用の一覧。
type sharedListResponse struct {
	Name          string                 `json:"name"`
	SortOption    string                 `json:"sortOption"`
	Subscriptions []subscriptionResponse `json:"subscriptions"`
}

// --- リクエスト ---

// subscriptionRequest はサブスクリプション作成・更新リクエストのボディ。
// 更新では省略したフィールドを変更しない。amountは数値と数値文字列の両方を受け付ける。
type subscriptionRequest struct {
	Name        *string         `json:"name"`
	Amount      json.RawMessage `json:"amount"`
	Currency    *string         `json:"currency"`
	Frequency   *string         `json:"frequency"`
	NextPayment *string         `json:"nextPayment"`
	StartDate   *string         `json:"startDate"`
	AutoRenewal *bool           `json:"autoRenewal"`
	Labels      *[]string       `json:"labels"`
	URL         *string         `json:"url"`
	Icon        *string         `json:"icon"`
	Comment     *string         `json:"comment"`
	Colors      *model.Colors   `json:"colors"`
}

const (
	msgAmountNotNumber = "Amount must be a number"
	msgDateInvalid     = "Date must be in YYYY-MM-DD format"
)

// parseAmount はamountの生の値を解析する。未指定の場合はpresent=falseを返す。
func parseAmount(raw json.RawMessage) (amount decimal.Decimal, present bool, fe *model.FieldError) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return decimal.Zero, false, nil
	}
	s = strings.TrimSpace(strings.Trim(s, `"`))
	if s == "" {
		return decimal.Zero, true, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, true, &model.FieldError{Field: "amount", Message: msgAmountNotNumber}
	}
	return d, true, nil
}

// parseOptionalDate は日付文字列を解析する。空文字はゼロ値として扱い、必須チェックは検証側に任せる。
func parseOptionalDate(field, raw string) (time.Time, *model.FieldError) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, nil
	}
	t, err := model.ParseDate(raw)
	if err != nil {
		return time.Time{}, &model.FieldError{Field: field, Message: msgDateInvalid}
	}
	return t, nil
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// toNewSubscription は作成リクエストをドメインの入力に変換する。
// 型や形式の誤りはフィールド単位のバリデーションエラーとして返す。
func (req subscriptionRequest) toNewSubscription() (model.NewSubscription, *model.APIError) {
	var fields []model.FieldError
	in := model.NewSubscription{
		Name:        deref(req.Name),
		Currency:    strings.ToUpper(strings.TrimSpace(deref(req.Currency))),
		Frequency:   model.Frequency(strings.ToLower(strings.TrimSpace(deref(req.Frequency)))),
		AutoRenewal: req.AutoRenewal,
		URL:         strings.TrimSpace(deref(req.URL)),
		Icon:        deref(req.Icon),
		Comment:     deref(req.Comment),
	}
	if req.Labels != nil {
		in.Labels = *req.Labels
	}
	if req.Colors != nil {
		in.Colors = *req.Colors
	}

	amount, _, fe := parseAmount(req.Amount)
	if fe != nil {
		fields = append(fields, *fe)
	}
	in.Amount = amount

	next, fe := parseOptionalDate("nextPayment", deref(req.NextPayment))
	if fe != nil {
		fields = append(fields, *fe)
	}
	in.NextPayment = next

	if req.StartDate != nil && strings.TrimSpace(*req.StartDate) != "" {
		start, fe := parseOptionalDate("startDate", *req.StartDate)
		if fe != nil {
			fields = append(fields, *fe)
		} else {
			in.StartDate = &start
		}
	}

	if len(fields) > 0 {
		return model.NewSubscription{}, model.NewValidationError(fields)
	}
	return in, nil
}

// toPatch は更新リクエストを部分更新の入力に変換する。
func (req subscriptionRequest) toPatch() (model.SubscriptionPatch, *model.APIError) {
	var fields []model.FieldError
	patch := model.SubscriptionPatch{
		Name:        req.Name,
		AutoRenewal: req.AutoRenewal,
		Labels:      req.Labels,
		Icon:        req.Icon,
		Comment:     req.Comment,
		Colors:      req.Colors,
	}
	if req.Currency != nil {
		v := strings.ToUpper(strings.TrimSpace(*req.Currency))
		patch.Currency = &v
	}
	if req.Frequency != nil {
		v := model.Frequency(strings.ToLower(strings.TrimSpace(*req.Frequency)))
		patch.Frequency = &v
	}
	if req.URL != nil {
		v := strings.TrimSpace(*req.URL)
		patch.URL = &v
	}

	amount, present, fe := parseAmount(req.Amount)
	if fe != nil {
		fields = append(fields, *fe)
	} else if present {
		patch.Amount = &amount
	}

	if req.NextPayment != nil {
		next, fe := parseOptionalDate("nextPayment", *req.NextPayment)
		if fe != nil {
			fields = append(fields, *fe)
		} else {
			patch.NextPayment = &next
		}
	}
	if req.StartDate != nil && strings.TrimSpace(*req.StartDate) != "" {
		start, fe := parseOptionalDate("startDate", *req.StartDate)
		if fe != nil {
			fields = append(fields, *fe)
		} else {
			patch.StartDate = &start
		}
	}

	if len(fields) > 0 {
		return model.SubscriptionPatch{}, model.NewValidationError(fields)
	}
	return patch, nil
}

// workspaceRequest はワークスペース作成・更新リクエストのボディ。
type workspaceRequest struct {
	ID         string  `json:"id"`
	Name       *string `json:"name"`
	SortOption *string `json:"sortOption"`
}
