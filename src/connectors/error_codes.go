package connectors

import "fmt"

const (
	binanceCodeUnknownOrderSent   = -2011
	binanceCodeNoSuchOrder        = -2013
	binanceCodeTooManyRequests    = -1003
	binanceCodeTimestampOutOfSync = -1021
)

// BinanceErrorCodes maps Binance spot error codes to their short names.
var BinanceErrorCodes = map[int]string{
	-1000: "UNKNOWN",
	-1001: "DISCONNECTED",
	-1002: "UNAUTHORIZED",
	-1003: "TOO_MANY_REQUESTS",
	-1013: "INVALID_MESSAGE",         // filter failure (LOT_SIZE, PRICE_FILTER, ...)
	-1021: "INVALID_TIMESTAMP",       // outside recvWindow
	-1022: "INVALID_SIGNATURE",
	-1100: "ILLEGAL_CHARS",
	-1102: "MANDATORY_PARAM_EMPTY_OR_MALFORMED",
	-1111: "BAD_PRECISION",
	-1121: "BAD_SYMBOL",
	-2010: "NEW_ORDER_REJECTED",      // insufficient balance, duplicate client id
	-2011: "CANCEL_REJECTED",         // unknown order sent
	-2013: "NO_SUCH_ORDER",
	-2014: "BAD_API_KEY_FMT",
	-2015: "REJECTED_MBX_KEY",
}

// GetErrorMsg returns the short name for a Binance error code.
func GetErrorMsg(code int) string {
	if msg, ok := BinanceErrorCodes[code]; ok {
		return msg
	}
	return fmt.Sprintf("UNKNOWN_BINANCE_ERROR_%d", code)
}

// APIError is a non-2xx Binance reply carrying {"code":..,"msg":..}.
type APIError struct {
	HTTPStatus int
	Code       int    `json:"code"`
	Msg        string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance HTTP %d: %d %s: %s", e.HTTPStatus, e.Code, GetErrorMsg(e.Code), e.Msg)
}

// orderMissing reports whether the venue says the order does not exist.
func (e *APIError) orderMissing() bool {
	return e.Code == binanceCodeNoSuchOrder || e.Code == binanceCodeUnknownOrderSent
}
