package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/PrivateCaptcha/powsolver/pkg/solver"
)

type request struct {
	Prefix    string `json:"prefix"`
	Target    string `json:"target"`
	Nonce     string `json:"nonce"`
	Algorithm string `json:"algorithm"`
}

type response struct {
	Algorithm string `json:"algorithm"`
	Candidate string `json:"candidate"`
	Digest    string `json:"digest"`
	Target    string `json:"target"`
	Valid     bool   `json:"valid"`
	Error     string `json:"error,omitempty"`
}

func verify(data []byte) (*response, int) {
	req := &request{}
	if err := json.Unmarshal(data, req); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing request: %v\n", err)
		return nil, 2
	}

	alg, err := solver.LookupAlgorithm(req.Algorithm)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error finding algorithm: %v\n", err)
		return nil, 3
	}

	nonce, err := strconv.ParseUint(req.Nonce, 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing nonce: %v\n", err)
		return nil, 3
	}

	resp := &response{
		Algorithm: alg.Name,
		Candidate: req.Prefix + strconv.FormatUint(nonce, 10),
		Digest:    hex.EncodeToString(solver.Digest(alg, req.Prefix, nonce)),
		Target:    req.Target,
	}

	target, err := solver.ParseTarget(req.Target)
	if err == nil {
		resp.Target = target.String()
		err = solver.Verify(alg, req.Prefix, target, nonce)
	}

	resp.Valid = (err == nil)
	if err != nil {
		resp.Error = err.Error()
	}

	if errors.Is(err, solver.ErrInvalidTargetEncoding) || errors.Is(err, solver.ErrTargetLengthMismatch) {
		return resp, 3
	}

	return resp, 0
}

func main() {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading stdin: %v\n", err)
		os.Exit(1)
	}

	resp, code := verify(data)
	if resp != nil {
		out, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error marshalling response: %v\n", err)
			os.Exit(4)
		}

		fmt.Println(string(out))
	}

	if code == 0 && !resp.Valid {
		code = 5
	}

	if code != 0 {
		os.Exit(code)
	}
}
