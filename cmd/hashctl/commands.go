// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// AlgorithmsCmd 列出算法
type AlgorithmsCmd struct{}

func (c *AlgorithmsCmd) Run(g *Globals) error {
	algos, def, err := g.client().algorithms()
	if err != nil {
		return err
	}
	if g.JSON {
		g.print("%s\n", prettyJSON(map[string]interface{}{"algorithms": algos, "default": def}))
		return nil
	}
	for _, a := range algos {
		if a == def {
			g.print("%s (default)\n", a)
			continue
		}
		g.print("%s\n", a)
	}
	return nil
}

// HashCmd 同步计算上传文件
type HashCmd struct {
	HashFlags `embed:""`

	Files    []string `arg:"" help:"本地文件" type:"existingfile"`
	Manifest string   `help:"将成功结果写入 TOML 清单" type:"path"`
}

func (c *HashCmd) Run(g *Globals) error {
	res, err := g.client().hashFiles(c.Files, c.form())
	if err != nil {
		return err
	}
	if c.Manifest != "" {
		data, err := manifestFrom(res).encode()
		if err != nil {
			return err
		}
		if err := os.WriteFile(c.Manifest, data, 0o644); err != nil {
			return err
		}
	}
	printBatch(g, res)
	if res.ErrorCount > 0 {
		return fmt.Errorf("%d of %d files failed", res.ErrorCount, res.TotalFiles)
	}
	return nil
}

// PathCmd 计算服务端路径
type PathCmd struct {
	HashFlags `embed:""`

	Path string `arg:"" help:"服务端文件路径"`
}

func (c *PathCmd) Run(g *Globals) error {
	res, err := g.client().hashPath(c.Path, c.form())
	if err != nil {
		return err
	}
	if g.JSON {
		g.print("%s\n", prettyJSON(res))
		return nil
	}
	g.print("%s  %s\n", res.HashValue, res.FileName)
	return nil
}

// BatchCmd 提交目录任务
type BatchCmd struct {
	HashFlags `embed:""`

	Directory string        `arg:"" help:"服务端目录"`
	Recursive bool          `help:"递归子目录" short:"r"`
	Follow    bool          `help:"等待完成并输出结果" short:"f"`
	Poll      time.Duration `help:"轮询间隔" default:"500ms"`
}

func (c *BatchCmd) Run(g *Globals) error {
	info, err := g.client().submitBatch(c.Directory, c.Recursive, c.form())
	if err != nil {
		return err
	}
	return followTask(g, info, c.Follow, c.Poll)
}

// UploadCmd 提交上传任务
type UploadCmd struct {
	HashFlags `embed:""`

	Files  []string      `arg:"" help:"本地文件" type:"existingfile"`
	Follow bool          `help:"等待完成并输出结果" short:"f"`
	Poll   time.Duration `help:"轮询间隔" default:"500ms"`
}

func (c *UploadCmd) Run(g *Globals) error {
	info, err := g.client().submitUploads(c.Files, c.form())
	if err != nil {
		return err
	}
	return followTask(g, info, c.Follow, c.Poll)
}

func followTask(g *Globals, info taskInfo, follow bool, poll time.Duration) error {
	if !follow {
		if g.JSON {
			g.print("%s\n", prettyJSON(info))
		} else {
			g.print("%s\n", info.TaskID)
		}
		return nil
	}
	cl := g.client()
	for {
		st, err := cl.status(info.TaskID)
		if err != nil {
			return err
		}
		if st.Status.Terminal() {
			break
		}
		time.Sleep(poll)
	}
	res, err := cl.results(info.TaskID, true)
	if err != nil {
		return err
	}
	printBatch(g, res)
	return nil
}

// StatusCmd 查询状态
type StatusCmd struct {
	TaskID string `arg:"" name:"task-id"`
}

func (c *StatusCmd) Run(g *Globals) error {
	st, err := g.client().status(c.TaskID)
	if err != nil {
		return err
	}
	if g.JSON {
		g.print("%s\n", prettyJSON(st))
		return nil
	}
	g.print("%s %s %d/%d processed, %d ok, %d failed\n",
		st.TaskID, st.Status, st.ProcessedFiles, st.TotalFiles, st.SuccessCount, st.ErrorCount)
	return nil
}

// ResultsCmd 查询结果
type ResultsCmd struct {
	TaskID   string `arg:"" name:"task-id"`
	NoErrors bool   `help:"不返回错误消息" name:"no-errors"`
}

func (c *ResultsCmd) Run(g *Globals) error {
	res, err := g.client().results(c.TaskID, !c.NoErrors)
	if err != nil {
		return err
	}
	printBatch(g, res)
	return nil
}

// CancelCmd 取消任务
type CancelCmd struct {
	TaskID string `arg:"" name:"task-id"`
}

func (c *CancelCmd) Run(g *Globals) error {
	n, err := g.client().cancel(c.TaskID)
	if err != nil {
		return err
	}
	g.print("cancelled %d pending files of %s\n", n, c.TaskID)
	return nil
}

// VerifyCmd 按清单校验
type VerifyCmd struct {
	HashFlags `embed:""`

	Manifest string   `arg:"" help:"期望摘要清单（TOML 或 JSON）" type:"existingfile"`
	Files    []string `arg:"" optional:"" help:"待校验的本地文件" type:"existingfile"`
	Task     string   `help:"改为校验已完成的 Task"`
}

func (c *VerifyCmd) Run(g *Globals) error {
	m, err := loadManifest(c.Manifest)
	if err != nil {
		return err
	}
	expected, err := m.expectedJSON()
	if err != nil {
		return err
	}
	f := c.form()
	if f.Algorithm == "" {
		f.Algorithm = m.Algorithm
	}

	var report verifyReport
	switch {
	case c.Task != "":
		report, err = g.client().verifyTask(c.Task, expected)
	case len(c.Files) > 0:
		report, err = g.client().verifyFiles(c.Files, expected, f)
	default:
		return fmt.Errorf("either files or --task is required")
	}
	if err != nil {
		return err
	}

	if g.JSON {
		g.print("%s\n", prettyJSON(report))
	} else {
		for _, e := range report.Results {
			g.print("%-8s %s\n", strings.ToUpper(string(e.Verdict)), e.Name)
		}
		g.print("%d matched, %d mismatched, %d missing\n", report.Matched, report.Mismatched, report.Missing)
	}
	if !report.OK {
		return fmt.Errorf("verification failed")
	}
	return nil
}

func printBatch(g *Globals, res batchResult) {
	if g.JSON {
		g.print("%s\n", prettyJSON(res))
		return
	}
	for _, r := range res.Results {
		switch r.Status {
		case "success":
			g.print("%s  %s\n", r.HashValue, r.FileName)
		case "error":
			msg := r.ErrorKind
			if r.ErrorMessage != "" {
				msg += ": " + r.ErrorMessage
			}
			g.print("ERROR  %s (%s)\n", r.FileName, msg)
		default:
			g.print("%-7s %s\n", strings.ToUpper(r.Status), r.FileName)
		}
	}
}
