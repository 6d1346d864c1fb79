package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"astaverde/pkg/domain"
)

func NewRequestID() string { return "req_" + uuid.NewString() }

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func ReadJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func WriteError(w http.ResponseWriter, status int, code, message string, details any) {
	resp := map[string]any{
		"request_id": NewRequestID(),
		"error": map[string]any{
			"code": code, "message": message, "details": details,
		},
	}
	WriteJSON(w, status, resp)
}

// engine sentinel → stable code + HTTP status
var errTable = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrBadAddress, 400, "BAD_ADDRESS"},
	{domain.ErrZeroAddress, 400, "ZERO_ADDRESS"},
	{domain.ErrLengthMismatch, 400, "LENGTH_MISMATCH"},
	{domain.ErrEmptyBatch, 400, "EMPTY_BATCH"},
	{domain.ErrBatchTooLarge, 400, "BATCH_TOO_LARGE"},
	{domain.ErrCIDTooLong, 400, "CID_TOO_LONG"},
	{domain.ErrZeroAmount, 400, "ZERO_AMOUNT"},
	{domain.ErrZeroQuantity, 400, "ZERO_QUANTITY"},
	{domain.ErrDuplicateToken, 400, "DUPLICATE_TOKEN"},
	{domain.ErrUnknownBatch, 404, "UNKNOWN_BATCH"},
	{domain.ErrUnknownToken, 404, "UNKNOWN_TOKEN"},
	{domain.ErrRedeemed, 409, "TOKEN_REDEEMED"},
	{domain.ErrNotTokenOwner, 409, "NOT_TOKEN_OWNER"},
	{domain.ErrLoanActive, 409, "LOAN_ACTIVE"},
	{domain.ErrLoanInactive, 409, "NO_ACTIVE_LOAN"},
	{domain.ErrNotBorrower, 409, "NOT_BORROWER"},
	{domain.ErrInsufficientStock, 409, "INSUFFICIENT_STOCK"},
	{domain.ErrRegistryRecipient, 409, "REGISTRY_RECIPIENT"},
	{domain.ErrNotOwner, 403, "NOT_OWNER"},
	{domain.ErrNotMinter, 403, "NOT_MINTER"},
	{domain.ErrNotOperator, 403, "NOT_OPERATOR"},
	{domain.ErrAdminRenounced, 403, "ADMIN_RENOUNCED"},
	{domain.ErrInsufficientBalance, 402, "INSUFFICIENT_BALANCE"},
	{domain.ErrInsufficientAllowance, 402, "INSUFFICIENT_ALLOWANCE"},
	{domain.ErrSupplyCapExceeded, 409, "SUPPLY_CAP_EXCEEDED"},
	{domain.ErrPaused, 423, "PAUSED"},
	{domain.ErrNotPaused, 409, "NOT_PAUSED"},
	{domain.ErrNothingToClaim, 409, "NOTHING_TO_CLAIM"},
	{domain.ErrNoSurplus, 409, "NO_SURPLUS"},
	{domain.ErrPriceExceedsMax, 409, "PRICE_EXCEEDS_MAX"},
}

// WriteEngineError maps an engine failure to its stable error code.
// Unmapped errors surface as 500 INTERNAL.
func WriteEngineError(w http.ResponseWriter, err error) {
	for _, e := range errTable {
		if errors.Is(err, e.err) {
			WriteError(w, e.status, e.code, err.Error(), nil)
			return
		}
	}
	WriteError(w, 500, "INTERNAL", err.Error(), nil)
}
