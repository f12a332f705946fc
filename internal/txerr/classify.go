package txerr

import "strings"

// Classification is the display form of a failed transaction.
type Classification struct {
	Kind      Kind   `json:"kind"`
	Friendly  string `json:"friendlyMessage"`
	Technical string `json:"technicalDetails"`
	Raw       string `json:"raw"`
}

const unknownError = "Unknown error"

type rule struct {
	kind    Kind
	needles []string
}

// Order matters: the first rule with a matching needle wins.
var rules = []rule{
	{KindInsufficientDeposit, []string{"err_insufficient_deposit", "function: 104"}},
	{KindInsufficientGas, []string{"InsufficientGas", "gas"}},
	{KindUserRejected, []string{"reject", "denied", "cancel"}},
	{KindInsufficientBalance, []string{"Insufficient", "balance"}},
	{KindMoveAbort, []string{"MoveAbort"}},
}

var messages = map[Kind]struct{ friendly, technical string }{
	KindInsufficientDeposit: {
		"Not enough redeemable deposit / no claimable position",
		"The protocol returned err_insufficient_deposit (104).\n\n" +
			"Sell: the asset may have arrived by transfer instead of a purchase made here, " +
			"or the purchase has not been indexed yet. Buy a small amount first or retry in a few minutes.\n\n" +
			"Claim: no rewards have accrued yet, they were just claimed, or the account never bought through the platform.",
	},
	KindInsufficientGas: {
		"Not enough SUI to pay for gas",
		"Keep enough SUI in the wallet to cover transaction fees (usually 0.01-0.1 SUI).",
	},
	KindUserRejected: {
		"Signature request was rejected",
		"The transaction was cancelled in the wallet and was not submitted to the chain.",
	},
	KindInsufficientBalance: {
		"Insufficient token balance",
		"The wallet does not hold enough tokens for this operation. Check the balance and retry.",
	},
	KindMoveAbort: {
		"On-chain contract execution aborted",
		"The smart contract aborted during execution. Check the input parameters and account state.",
	},
	KindClaimUnsupported: {
		"Claim is not supported",
		"This asset or account does not currently support claiming rewards.",
	},
	KindNotConfigured: {
		"Asset is not configured",
		"The selected asset has no deployed coin type yet.",
	},
	KindUnsupportedMode: {
		"Redemption mode not supported",
		"The selected asset does not support this redemption mode.",
	},
	KindInvalidAmount: {
		"Invalid amount",
		"Enter a positive decimal amount.",
	},
	KindInProgress: {
		"Another transaction is in progress",
		"Wait for the current transaction to finish or reset it before starting a new one.",
	},
	KindExecutionFailed: {
		"Transaction execution failed",
		"See the raw error below for details.",
	},
}

// Classify maps a raw error message to a category by ordered substring
// rules. Empty messages fall back to KindExecutionFailed.
func Classify(msg string) Classification {
	raw := msg
	if raw == "" {
		raw = unknownError
	}
	for _, r := range rules {
		for _, n := range r.needles {
			if strings.Contains(raw, n) {
				return build(r.kind, raw)
			}
		}
	}
	return build(KindExecutionFailed, raw)
}

// ClassifyError prefers the kind attached by the collaborator and falls back
// to Classify on the message for untyped errors. A deposit abort in the
// message overrides any attached kind.
func ClassifyError(err error) Classification {
	if err == nil {
		return Classify("")
	}
	if isDepositAbort(err.Error()) {
		return build(KindInsufficientDeposit, err.Error())
	}
	if kind := KindOf(err); kind != "" {
		if _, ok := messages[kind]; ok {
			return build(kind, err.Error())
		}
	}
	return Classify(err.Error())
}

// ClassifyResult combines a recorded kind with its raw message.
func ClassifyResult(kind Kind, msg string) Classification {
	if isDepositAbort(msg) {
		return build(KindInsufficientDeposit, msg)
	}
	if _, ok := messages[kind]; ok && kind != "" {
		if msg == "" {
			msg = unknownError
		}
		return build(kind, msg)
	}
	return Classify(msg)
}

func build(kind Kind, raw string) Classification {
	m := messages[kind]
	return Classification{
		Kind:      kind,
		Friendly:  m.friendly,
		Technical: m.technical,
		Raw:       raw,
	}
}

func isDepositAbort(msg string) bool {
	for _, n := range rules[0].needles {
		if strings.Contains(msg, n) {
			return true
		}
	}
	return false
}
