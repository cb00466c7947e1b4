/*
 * Copyright 2024 Zelide Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package opto

import (
    `fmt`
    `os`
    `sort`

    `github.com/ajstarks/svgo`
)

// draw_livesets renders the anchor live sets of a graph as an SVG table,
// one row per instruction, one column per register ever recorded live.
// Debugging aid only, nothing in the analyses depends on it.
func draw_livesets(fn string, cfg *CFG, ctx *Context) {
    maxi := 0
    seen := make(map[Reg]bool)
    regs := make([]Reg, 0, 16)
    rows := make([]IrNode, 0, 64)

    /* collect rows, columns and the widest instruction text */
    for _, b := range cfg.Blocks() {
        for _, v := range b.Ins {
            rows = append(rows, v)
            if s := v.String(); len(s) > maxi {
                maxi = len(s)
            }
            rm := ctx.LiveAt(v)
            if rm == nil {
                continue
            }
            for it := rm.Iter(); it.Next(); {
                if !seen[it.Reg()] {
                    seen[it.Reg()] = true
                    regs = append(regs, it.Reg())
                }
            }
        }
        rows = append(rows, b.Term)
    }
    sort.Slice(regs, func(i int, j int) bool {
        return regs[i] < regs[j]
    })

    /* layout */
    insw := maxi * 9 + 120
    regw := 48
    fp, err := os.OpenFile(fn, os.O_RDWR | os.O_CREATE | os.O_TRUNC, 0644)
    if err != nil {
        panic(err)
    }
    defer fp.Close()
    p := svg.New(fp)
    p.Start(len(regs) * regw + insw + 100, len(rows) * 24 + 100)
    if _, err = fp.WriteString(`<rect width="100%" height="100%" fill="white" />` + "\n"); err != nil {
        panic(err)
    }

    /* register headers */
    for i, r := range regs {
        x := insw + i * regw + 50
        p.Text(x, 70, r.String(), "fill:black;font-size:16px;font-family:monospace;text-anchor:middle")
    }

    /* one row per instruction, a box per live register at an anchor */
    for i, v := range rows {
        h := 100 + i * 24
        p.Text(insw, h, v.String(), "fill:black;font-size:16px;font-family:monospace;text-anchor:end")
        rm := ctx.LiveAt(v)
        if rm == nil {
            continue
        }
        p.Line(insw + 10, h - 5, len(regs) * regw + insw + 50, h - 5, "stroke:lightgray")
        for j, r := range regs {
            if rm.Member(r) {
                x := insw + j * regw + 50
                p.Square(x - 6, h - 14, 12, "fill:black")
            }
        }
        p.Text(len(regs) * regw + insw + 60, h, fmt.Sprintf("|%s| = %d", liveName(v), rm.Size()), "fill:gray;font-size:12px;font-family:monospace")
    }
    p.End()
}

func liveName(v IrNode) string {
    switch v.(type) {
        case *IrSafepoint : return "sfp"
        default           : return "acc"
    }
}

// dumpLiveSets prints the anchor live sets as text, one line per anchor.
func dumpLiveSets(cfg *CFG, ctx *Context) string {
    s := ""
    for _, b := range cfg.Blocks() {
        for _, v := range b.Ins {
            if rm := ctx.LiveAt(v); rm != nil {
                s += fmt.Sprintf("bb_%d: %s -- live %s\n", b.Id, v, rm)
            }
        }
    }
    return s
}
