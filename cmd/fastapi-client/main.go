// fastapi-client 从运行中的服务或契约文件生成 python 客户端
//
//	fastapi-client http://127.0.0.1:8000 -o ./client
//	fastapi-client contract.yaml --name files_api -o ./client
package main

import (
	"os"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
