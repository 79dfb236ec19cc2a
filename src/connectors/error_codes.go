package connectors

import "fmt"

// BrokerErrorCodes maps broker business error codes to short names.
var BrokerErrorCodes = map[int]string{
	10001: "UNKNOWN_ERROR",
	10002: "INVALID_ARGUMENT",
	10003: "MAINTENANCE_MODE",
	10010: "INVALID_SIGNATURE",
	10011: "REQUEST_EXPIRED",
	10012: "INVALID_API_KEY",
	11001: "INVALID_SYMBOL",
	11002: "INVALID_SIDE",
	11003: "INVALID_ORDER_TYPE",
	11004: "INVALID_QUANTITY",
	11005: "QTY_NOT_LOT_MULTIPLE",
	11006: "INVALID_PRICE",
	11007: "PRICE_OUTSIDE_BAND",
	11010: "INSUFFICIENT_BALANCE",
	11011: "INSUFFICIENT_POSITION",
	11020: "MARKET_CLOSED",
	11021: "SYMBOL_SUSPENDED",
	11030: "ORDER_NOT_FOUND",
	11031: "ORDER_ALREADY_CLOSED",
	11040: "CLIENT_ID_EXIST",
	11050: "TOO_MANY_ORDERS",
}

// GetErrorMsg returns the short name for a broker error code, or a generic
// name including the code when it is unknown.
func GetErrorMsg(code int) string {
	if msg, ok := BrokerErrorCodes[code]; ok {
		return msg
	}
	return fmt.Sprintf("UNKNOWN_BROKER_ERROR_%d", code)
}
