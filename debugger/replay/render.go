// Copyright (C) 2019-2024 Algorand, Inc.
// This file is part of go-algorand
//
// go-algorand is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// go-algorand is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with go-algorand.  If not, see <https://www.gnu.org/licenses/>.

package replay

import (
	"regexp"
	"strings"

	"github.com/algorand/avm-debugger/data/simulation"
	"github.com/algorand/avm-debugger/protocol"
)

const jsonMimeType = "application/json"

var (
	lsigLineRe     = regexp.MustCompile(`^\s*"lsig":\s*\{\s*$`)
	appIDLineRe    = regexp.MustCompile(`^\s*"apid":\s*\d+,?\s*$`)
	approvalLineRe = regexp.MustCompile(`^\s*"apap":\s*"[A-Za-z0-9+/=]*",?\s*$`)
)

// txnLayout holds the zero based lines a transaction occupies in a rendered
// document. lsigLine and appLine point at the field highlighted right before
// the logic sig or the application program is entered.
type txnLayout struct {
	line     int
	endLine  int
	lsigLine int
	appLine  int
}

// renderTxn renders the signed transaction of t as canonical JSON lines.
func renderTxn(t simulation.PendingTransaction) []string {
	doc := t.Txn
	if doc == nil {
		doc = map[string]interface{}{}
	}
	return strings.Split(string(protocol.EncodeJSON(doc)), "\n")
}

// renderTxnArray renders txns as a JSON array, one line per element line,
// and returns the layout of every transaction relative to the first line of
// the array.
func renderTxnArray(txns []simulation.PendingTransaction) ([]string, []txnLayout) {
	lines := []string{"["}
	layouts := make([]txnLayout, len(txns))
	for i, txn := range txns {
		body := renderTxn(txn)
		offset := len(lines)
		layout := txnLayout{line: offset, endLine: offset + len(body) - 1, lsigLine: offset + 1, appLine: offset + 1}
		appIDLine, approvalLine := -1, -1
		lsigFound := false
		for j, l := range body {
			if !lsigFound && lsigLineRe.MatchString(l) {
				layout.lsigLine = offset + j
				lsigFound = true
			}
			if appIDLine < 0 && appIDLineRe.MatchString(l) {
				appIDLine = offset + j
			}
			if approvalLineRe.MatchString(l) {
				approvalLine = offset + j
			}
		}
		if appIDLine >= 0 {
			layout.appLine = appIDLine
		} else if approvalLine >= 0 {
			layout.appLine = approvalLine
		}
		layouts[i] = layout

		for j, l := range body {
			l = "  " + l
			if j == len(body)-1 && i != len(txns)-1 {
				l += ","
			}
			lines = append(lines, l)
		}
	}
	lines = append(lines, "]")
	return lines, layouts
}

// renderGroups renders every group of resp as an array of transaction
// arrays and returns the first and last line of every group.
func renderGroups(resp *simulation.SimulateResponse) (string, []SourceLocation) {
	lines := []string{"["}
	locations := make([]SourceLocation, len(resp.TxnGroups))
	for i, group := range resp.TxnGroups {
		txns := make([]simulation.PendingTransaction, len(group.Txns))
		for j := range group.Txns {
			txns[j] = group.Txns[j].Txn
		}
		groupLines, _ := renderTxnArray(txns)
		locations[i] = SourceLocation{Line: len(lines), EndLine: len(lines) + len(groupLines) - 1}
		for j, l := range groupLines {
			l = "  " + l
			if j == len(groupLines)-1 && i != len(resp.TxnGroups)-1 {
				l += ","
			}
			lines = append(lines, l)
		}
	}
	lines = append(lines, "]")
	return strings.Join(lines, "\n"), locations
}
