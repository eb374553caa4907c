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

// Command hashctl 摘要服务命令行客户端
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

var version = "dev"

// Globals 全局参数
type Globals struct {
	Server  string        `help:"API 地址" env:"FILEHASH_API_URL" default:"http://localhost:8080"`
	Token   string        `help:"JWT（Authorization: Bearer）" env:"FILEHASH_TOKEN"`
	Timeout time.Duration `help:"HTTP 请求超时" default:"60s"`
	JSON    bool          `help:"输出原始 JSON" name:"json"`

	out io.Writer `kong:"-"`
}

func (g *Globals) client() *client {
	return newClient(g.Server, g.Token, g.Timeout)
}

func (g *Globals) print(format string, args ...interface{}) {
	fmt.Fprintf(g.out, format, args...)
}

// HashFlags 计算相关参数
type HashFlags struct {
	Algorithm string        `help:"摘要算法" short:"a"`
	ChunkSize int           `help:"读取块大小（字节）" name:"chunk-size"`
	Wait      time.Duration `help:"服务端同步等待时长" name:"wait"`
}

func (h HashFlags) form() form {
	return form{Algorithm: h.Algorithm, ChunkSize: h.ChunkSize, Timeout: h.Wait}
}

// CLI 命令定义
type CLI struct {
	Globals

	Version    kong.VersionFlag `help:"打印版本"`
	Algorithms AlgorithmsCmd    `cmd:"" help:"列出支持的算法"`
	Hash       HashCmd          `cmd:"" help:"上传本地文件并同步计算摘要"`
	Path       PathCmd          `cmd:"" help:"计算服务端路径的摘要"`
	Batch      BatchCmd         `cmd:"" help:"异步计算服务端目录"`
	Upload     UploadCmd        `cmd:"" help:"异步计算上传文件"`
	Status     StatusCmd        `cmd:"" help:"查询 Task 状态"`
	Results    ResultsCmd       `cmd:"" help:"查询 Task 结果"`
	Cancel     CancelCmd        `cmd:"" help:"取消 Task 中尚未开始的文件"`
	Verify     VerifyCmd        `cmd:"" help:"按清单校验文件摘要"`
}

func main() {
	_ = godotenv.Load()

	cli := CLI{Globals: Globals{out: os.Stdout}}
	ctx := kong.Parse(&cli,
		kong.Name("hashctl"),
		kong.Description("文件摘要服务命令行客户端"),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)
	if err := ctx.Run(&cli.Globals); err != nil {
		fmt.Fprintf(os.Stderr, "hashctl: %v\n", err)
		os.Exit(1)
	}
}
