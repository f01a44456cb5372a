// Package present renders search outcomes for the terminal and asks for broadcast confirmation.
package present

import (
	"bufio"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
	"github.com/sugawarayuuta/sonnet"

	"github.com/Liam-Dow/vanity-txhash-deployer/internal/crypto"
	"github.com/Liam-Dow/vanity-txhash-deployer/pkg/types"
)

// ConfirmPrompt is shown before a matched transaction is broadcast.
const ConfirmPrompt = "Send this transaction? (y/n): "

// Deployment describes the sender side of the transaction being searched.
type Deployment struct {
	Sender   common.Address
	Nonce    uint64
	ChainID  uint64
	GasLimit uint64
	Prefix   crypto.Prefix
}

// Report is the machine-readable form of an outcome.
type Report struct {
	Status          string  `json:"status"`
	ChainID         uint64  `json:"chainId"`
	Sender          string  `json:"sender"`
	Nonce           uint64  `json:"nonce"`
	Prefix          string  `json:"prefix"`
	Hash            string  `json:"hash,omitempty"`
	HashMode        string  `json:"hashMode,omitempty"`
	ContractAddress string  `json:"contractAddress,omitempty"`
	BaseFee         uint64  `json:"baseFee,omitempty"`
	PriorityFee     uint64  `json:"priorityFee,omitempty"`
	MaxFeePerGas    uint64  `json:"maxFeePerGas,omitempty"`
	GasLimit        uint64  `json:"gasLimit"`
	MaxCostWei      string  `json:"maxCostWei,omitempty"`
	ClosestHash     string  `json:"closestHash,omitempty"`
	ClosestNibbles  int     `json:"closestNibbles,omitempty"`
	Attempts        uint64  `json:"attempts"`
	DurationSeconds float64 `json:"durationSeconds"`
	Rate            float64 `json:"rate"`
}

// Presenter writes human or JSON output and reads confirmations.
type Presenter struct {
	out io.Writer
	in  *bufio.Reader
}

// New creates a presenter over the given streams.
func New(out io.Writer, in io.Reader) *Presenter {
	return &Presenter{out: out, in: bufio.NewReader(in)}
}

// MaxCost returns gasLimit * maxFeePerGas in wei, the most the transaction can spend on gas.
func MaxCost(gasLimit uint64, fees types.FeePair) *big.Int {
	cost := new(uint256.Int).Mul(uint256.NewInt(gasLimit), uint256.NewInt(fees.MaxFeePerGas()))
	return cost.ToBig()
}

// FormatEther renders a wei amount in ether with 18 decimal places trimmed of trailing zeros.
func FormatEther(wei *big.Int) string {
	f := new(big.Float).SetPrec(256).SetInt(wei)
	f.Quo(f, new(big.Float).SetPrec(256).SetInt64(params.Ether))
	s := f.Text('f', 18)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return s
}

// BuildReport flattens an outcome into a Report.
func BuildReport(d Deployment, o *types.Outcome) Report {
	r := Report{
		Status:          o.Status.String(),
		ChainID:         d.ChainID,
		Sender:          d.Sender.Hex(),
		Nonce:           d.Nonce,
		Prefix:          d.Prefix.String(),
		GasLimit:        d.GasLimit,
		Attempts:        o.Attempts,
		DurationSeconds: o.Duration.Seconds(),
		Rate:            o.Rate(),
	}
	if res := o.Result; res != nil {
		r.Hash = res.HashHex()
		r.HashMode = "payload"
		if res.Signed {
			r.HashMode = "signed"
		}
		r.ContractAddress = crypto.ContractAddress(d.Sender, d.Nonce).Hex()
		r.BaseFee = res.FeePair.BaseFeeOffer
		r.PriorityFee = res.FeePair.PriorityFeeOffer
		r.MaxFeePerGas = res.FeePair.MaxFeePerGas()
		r.MaxCostWei = MaxCost(d.GasLimit, res.FeePair).String()
	}
	if c := o.Closest; c != nil && o.Result == nil {
		r.ClosestHash = c.Hash.Hex()
		r.ClosestNibbles = c.MatchedNibbles
	}
	return r
}

// Outcome prints a human-readable summary of the outcome.
func (p *Presenter) Outcome(d Deployment, o *types.Outcome) {
	switch o.Status {
	case types.StatusMatched:
		res := o.Result
		fmt.Fprintf(p.out, "Found matching transaction hash!\n")
		fmt.Fprintf(p.out, "Hash:             %s\n", res.HashHex())
		if !res.Signed {
			fmt.Fprintf(p.out, "Hash mode:        signing payload (the broadcast hash will differ)\n")
		}
		fmt.Fprintf(p.out, "Contract address: %s\n", crypto.ContractAddress(d.Sender, d.Nonce).Hex())
		fmt.Fprintf(p.out, "Sender:           %s (nonce %d)\n", d.Sender.Hex(), d.Nonce)
		fmt.Fprintf(p.out, "Base fee offer:   %d wei\n", res.FeePair.BaseFeeOffer)
		fmt.Fprintf(p.out, "Priority fee:     %d wei\n", res.FeePair.PriorityFeeOffer)
		fmt.Fprintf(p.out, "Max fee per gas:  %d wei\n", res.FeePair.MaxFeePerGas())
		fmt.Fprintf(p.out, "Gas limit:        %d\n", d.GasLimit)
		fmt.Fprintf(p.out, "Max cost:         %s ETH\n", FormatEther(MaxCost(d.GasLimit, res.FeePair)))
	case types.StatusExhausted:
		fmt.Fprintf(p.out, "Search space exhausted without a match for %s.\n", d.Prefix)
		p.closest(o.Closest)
	case types.StatusInterrupted:
		fmt.Fprintf(p.out, "Search interrupted.\n")
		p.closest(o.Closest)
	}
	fmt.Fprintf(p.out, "Attempts:         %d\n", o.Attempts)
	fmt.Fprintf(p.out, "Duration:         %v\n", o.Duration.Round(time.Millisecond))
	fmt.Fprintf(p.out, "Rate:             %.2f hashes/sec\n", o.Rate())
}

func (p *Presenter) closest(c *types.Candidate) {
	if c == nil {
		fmt.Fprintf(p.out, "No candidates evaluated.\n")
		return
	}
	fmt.Fprintf(p.out, "Closest hash:     %s (%d matching nibbles)\n", c.Hash.Hex(), c.MatchedNibbles)
	fmt.Fprintf(p.out, "Closest fees:     base %d, priority %d\n", c.FeePair.BaseFeeOffer, c.FeePair.PriorityFeeOffer)
}

// JSON writes v as a single JSON document followed by a newline.
func (p *Presenter) JSON(v any) error {
	data, err := sonnet.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	data = append(data, '\n')
	_, err = p.out.Write(data)
	return err
}

// Confirm asks the user whether to broadcast. Anything other than y or yes declines.
func (p *Presenter) Confirm() (bool, error) {
	fmt.Fprint(p.out, ConfirmPrompt)
	line, err := p.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
