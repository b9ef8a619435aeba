package aptos

// Wire types for the subset of the fullnode REST API the service uses.
// Numeric fields arrive as decimal strings and are kept that way until
// parsed at the call site.

// accountData is the response of GET /v1/accounts/{address}.
type accountData struct {
	SequenceNumber    string `json:"sequence_number"`
	AuthenticationKey string `json:"authentication_key"`
}

// coinStoreResource is the response of
// GET /v1/accounts/{address}/resource/0x1::coin::CoinStore<T>.
type coinStoreResource struct {
	Type string `json:"type"`
	Data struct {
		Coin struct {
			Value string `json:"value"`
		} `json:"coin"`
	} `json:"data"`
}

// pendingTransaction is the response of a successful submission.
type pendingTransaction struct {
	Hash string `json:"hash"`
}

// transactionByHash is the response of GET /v1/transactions/by_hash/{hash}.
// Type is "pending_transaction" until the transaction is committed;
// Success and VMStatus are only meaningful afterwards.
type transactionByHash struct {
	Type     string `json:"type"`
	Hash     string `json:"hash"`
	Success  *bool  `json:"success,omitempty"`
	VMStatus string `json:"vm_status,omitempty"`
}

// restError is the fullnode's error envelope.
type restError struct {
	Message   string `json:"message"`
	ErrorCode string `json:"error_code"`
}

// OutcomeStatus classifies the result of a confirmation wait.
type OutcomeStatus string

const (
	// OutcomeCommitted means the transaction executed successfully.
	OutcomeCommitted OutcomeStatus = "committed"

	// OutcomeReverted means the transaction was mined but aborted; no
	// funds moved.
	OutcomeReverted OutcomeStatus = "reverted"

	// OutcomeUnknown means the outcome could not be observed within the
	// wait window. It must not be treated as success or failure.
	OutcomeUnknown OutcomeStatus = "unknown"
)

// TransactionOutcome is the result of AwaitConfirmation.
type TransactionOutcome struct {
	Status   OutcomeStatus
	Hash     string
	VMStatus string
}
