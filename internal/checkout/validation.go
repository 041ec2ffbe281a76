package checkout

import (
	"errors"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/tr"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	tr_translations "github.com/go-playground/validator/v10/translations/tr"

	"academy-storefront/internal/model"
)

// Form is the checkout form as posted by the client. Field order matches the
// order fields are shown in.
type Form struct {
	FullName         string              `json:"full_name" validate:"notblank"`
	Email            string              `json:"email" validate:"required,simple_email"`
	Phone            string              `json:"phone" validate:"required,tr_mobile"`
	CustomerType     model.CustomerType  `json:"customer_type" validate:"omitempty,oneof=individual corporate"`
	InvoiceRequested bool                `json:"invoice_requested"`
	NationalID       string              `json:"national_id"`
	TaxOffice        string              `json:"tax_office"`
	TaxNumber        string              `json:"tax_number"`
	BillingAddress   string              `json:"billing_address"`
	PaymentMethod    model.PaymentMethod `json:"payment_method" validate:"required,oneof=credit_card bank_transfer iyzilink"`
	CardName         string              `json:"card_name"`
	CardNumber       string              `json:"card_number"`
	CardExpiry       string              `json:"card_expiry"`
	CardCVC          string              `json:"card_cvc"`
	Consent          bool                `json:"consent" validate:"accepted"`
}

// Customer returns the customer type, individual when not chosen.
func (f Form) Customer() model.CustomerType {
	if f.CustomerType == "" {
		return model.CustomerIndividual
	}
	return f.CustomerType
}

func (f Form) needsNationalID() bool {
	return f.InvoiceRequested && f.Customer() == model.CustomerIndividual
}

func (f Form) needsCorporateFields() bool {
	return f.InvoiceRequested && f.Customer() == model.CustomerCorporate
}

func (f Form) needsCard() bool {
	return f.PaymentMethod == model.PaymentMethodCreditCard
}

var fieldOrder = []string{
	"full_name",
	"email",
	"phone",
	"customer_type",
	"national_id",
	"tax_office",
	"tax_number",
	"billing_address",
	"payment_method",
	"card_name",
	"card_number",
	"card_expiry",
	"card_cvc",
	"consent",
}

var fieldPosition = func() map[string]int {
	m := make(map[string]int, len(fieldOrder))
	for i, f := range fieldOrder {
		m[f] = i
	}
	return m
}()

var ErrUnknownField = errors.New("unknown checkout field")

type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// ValidationError lists every invalid field in form order.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Field
	}
	return "invalid checkout form: " + strings.Join(names, ", ")
}

// First is the field the client should bring into view.
func (e *ValidationError) First() *FieldError {
	if len(e.Fields) == 0 {
		return nil
	}
	return &e.Fields[0]
}

func (e *ValidationError) Map() map[string]string {
	m := make(map[string]string, len(e.Fields))
	for _, f := range e.Fields {
		m[f.Field] = f.Message
	}
	return m
}

// custom validation tags
const (
	notBlankTag    = "notblank"
	simpleEmailTag = "simple_email"
	trMobileTag    = "tr_mobile"
	nationalIDTag  = "national_id"
	taxNumberTag   = "tax_number"
	cardNumberTag  = "card_number"
	cardExpiryTag  = "card_expiry"
	cardCVCTag     = "card_cvc"
	acceptedTag    = "accepted"
	requiredTag    = "required"
)

var customMessages = map[string]map[string]string{
	"en": {
		notBlankTag:    "{0} is a required field",
		simpleEmailTag: "{0} must be a valid email address",
		trMobileTag:    "{0} must be a 10 digit mobile number starting with 5",
		nationalIDTag:  "{0} must be 11 digits and cannot start with 0",
		taxNumberTag:   "{0} must be 10 or 11 digits",
		cardNumberTag:  "{0} must be 16 digits",
		cardExpiryTag:  "{0} must be in MM/YY format",
		cardCVCTag:     "{0} must be 3 digits",
		acceptedTag:    "you must accept the terms to continue",
	},
	"tr": {
		notBlankTag:    "{0} zorunlu bir alandır",
		simpleEmailTag: "{0} geçerli bir e-posta adresi olmalıdır",
		trMobileTag:    "{0} 5 ile başlayan 10 haneli bir cep telefonu numarası olmalıdır",
		nationalIDTag:  "{0} 11 haneli olmalı ve 0 ile başlamamalıdır",
		taxNumberTag:   "{0} 10 veya 11 haneli olmalıdır",
		cardNumberTag:  "{0} 16 haneli olmalıdır",
		cardExpiryTag:  "{0} AA/YY biçiminde olmalıdır",
		cardCVCTag:     "{0} 3 haneli olmalıdır",
		acceptedTag:    "devam etmek için koşulları kabul etmelisiniz",
	},
}

var (
	emailRe      = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	nationalIDRe = regexp.MustCompile(`^[1-9][0-9]{10}$`)
	taxNumberRe  = regexp.MustCompile(`^[0-9]{10,11}$`)
	cardNumberRe = regexp.MustCompile(`^[0-9]{16}$`)
	cardExpiryRe = regexp.MustCompile(`^(0[1-9]|1[0-2])/[0-9]{2}$`)
	cardCVCRe    = regexp.MustCompile(`^[0-9]{3}$`)
	nonDigitRe   = regexp.MustCompile(`[^0-9]`)
	cardSepRe    = regexp.MustCompile(`[\s-]`)
)

func ValidEmail(s string) bool {
	return emailRe.MatchString(strings.TrimSpace(s))
}

// ValidPhone strips every non-digit and expects a 10 digit number starting with 5.
func ValidPhone(s string) bool {
	digits := DigitsOnly(s)
	return len(digits) == 10 && digits[0] == '5'
}

func ValidNationalID(s string) bool {
	return nationalIDRe.MatchString(strings.TrimSpace(s))
}

func ValidTaxNumber(s string) bool {
	return taxNumberRe.MatchString(strings.TrimSpace(s))
}

func ValidCardNumber(s string) bool {
	return cardNumberRe.MatchString(NormalizeCardNumber(s))
}

func ValidCardExpiry(s string) bool {
	return cardExpiryRe.MatchString(strings.TrimSpace(s))
}

func ValidCardCVC(s string) bool {
	return cardCVCRe.MatchString(strings.TrimSpace(s))
}

func DigitsOnly(s string) string {
	return nonDigitRe.ReplaceAllString(s, "")
}

func NormalizeCardNumber(s string) string {
	return cardSepRe.ReplaceAllString(s, "")
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// Validator checks checkout forms and translates messages.
type Validator struct {
	validate *validator.Validate
	uni      *ut.UniversalTranslator
}

func NewValidator() *Validator {
	v := validator.New()

	_en := en.New()
	_tr := tr.New()
	uni := ut.New(_en, _en, _tr)

	enTrans, _ := uni.GetTranslator("en")
	trTrans, _ := uni.GetTranslator("tr")
	_ = en_translations.RegisterDefaultTranslations(v, enTrans)
	_ = tr_translations.RegisterDefaultTranslations(v, trTrans)

	// Use JSON tag names for errors instead of Go struct names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation(notBlankTag, stringRule(func(s string) bool { return !blank(s) }))
	_ = v.RegisterValidation(simpleEmailTag, stringRule(ValidEmail))
	_ = v.RegisterValidation(trMobileTag, stringRule(ValidPhone))
	_ = v.RegisterValidation(acceptedTag, func(fl validator.FieldLevel) bool {
		accepted, ok := fl.Field().Interface().(bool)
		return ok && accepted
	})
	v.RegisterStructValidation(formStructValidation, Form{})

	for lang, messages := range customMessages {
		trans, _ := uni.GetTranslator(lang)
		for tag, msg := range messages {
			registerTranslation(v, trans, tag, msg)
		}
	}

	return &Validator{validate: v, uni: uni}
}

func stringRule(fn func(string) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		if s, ok := fl.Field().Interface().(string); ok {
			return fn(s)
		}
		if fl.Field().Kind() == reflect.String {
			return fn(fl.Field().String())
		}
		return false
	}
}

func registerTranslation(v *validator.Validate, trans ut.Translator, tag, msg string) {
	_ = v.RegisterTranslation(tag, trans,
		func(t ut.Translator) error {
			return t.Add(tag, msg, true)
		},
		func(t ut.Translator, fe validator.FieldError) string {
			s, err := t.T(tag, fe.Field())
			if err != nil {
				return fe.Error()
			}
			return s
		},
	)
}

// formStructValidation covers fields that are only required for some
// combinations of customer type, invoicing and payment method.
func formStructValidation(sl validator.StructLevel) {
	f, ok := sl.Current().Interface().(Form)
	if !ok {
		return
	}

	if f.needsNationalID() {
		checkConditional(sl, f.NationalID, "national_id", "NationalID", nationalIDTag, ValidNationalID)
	}
	if f.needsCorporateFields() {
		checkConditional(sl, f.TaxOffice, "tax_office", "TaxOffice", "", nil)
		checkConditional(sl, f.TaxNumber, "tax_number", "TaxNumber", taxNumberTag, ValidTaxNumber)
		checkConditional(sl, f.BillingAddress, "billing_address", "BillingAddress", "", nil)
	}
	if f.needsCard() {
		checkConditional(sl, f.CardName, "card_name", "CardName", "", nil)
		checkConditional(sl, f.CardNumber, "card_number", "CardNumber", cardNumberTag, ValidCardNumber)
		checkConditional(sl, f.CardExpiry, "card_expiry", "CardExpiry", cardExpiryTag, ValidCardExpiry)
		checkConditional(sl, f.CardCVC, "card_cvc", "CardCVC", cardCVCTag, ValidCardCVC)
	}
}

func checkConditional(sl validator.StructLevel, value, field, structField, formatTag string, valid func(string) bool) {
	if blank(value) {
		sl.ReportError(value, field, structField, requiredTag, "")
		return
	}
	if valid != nil && !valid(value) {
		sl.ReportError(value, field, structField, formatTag, "")
	}
}

// Translator picks the first supported language of an Accept-Language style
// list, English otherwise.
func (v *Validator) Translator(acceptLanguage string) ut.Translator {
	trans, _ := v.uni.FindTranslator(languages(acceptLanguage)...)
	return trans
}

func languages(header string) []string {
	var langs []string
	for _, part := range strings.Split(header, ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if tag == "" {
			continue
		}
		langs = append(langs, strings.ToLower(strings.SplitN(tag, "-", 2)[0]))
	}
	return langs
}

// Validate re-checks every field. It returns a *ValidationError naming all
// invalid fields, or nil.
func (v *Validator) Validate(form Form, lang string) error {
	err := v.validate.Struct(form)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	trans := v.Translator(lang)
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Message: fe.Translate(trans),
		})
	}
	sort.SliceStable(fields, func(i, j int) bool {
		return position(fields[i].Field) < position(fields[j].Field)
	})

	return &ValidationError{Fields: fields}
}

// ValidateField checks a single field, as done when the user leaves it.
func (v *Validator) ValidateField(form Form, field, lang string) (*FieldError, error) {
	if _, ok := fieldPosition[field]; !ok {
		return nil, ErrUnknownField
	}

	err := v.Validate(form, lang)
	if err == nil {
		return nil, nil
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		return nil, err
	}
	for i := range verr.Fields {
		if verr.Fields[i].Field == field {
			return &verr.Fields[i], nil
		}
	}
	return nil, nil
}

func position(field string) int {
	if p, ok := fieldPosition[field]; ok {
		return p
	}
	return len(fieldOrder)
}
