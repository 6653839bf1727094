package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"cdprules/internal/config"
	"cdprules/internal/logger"
	"cdprules/pkg/api"
)

func main() {
	var (
		cfgPath string
		target  string
	)

	root := &cobra.Command{
		Use:   "cdprules",
		Short: "基于 CDP 的请求规则引擎，带每标签页重定向链历史",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			log := logger.New(logger.Options{
				Level:   cfg.Log.Level,
				Writers: cfg.Log.Writer,
				File:    cfg.Log.File,
			})

			svc, err := api.NewService(cfg, log)
			if err != nil {
				return err
			}
			if err := svc.Start(target); err != nil {
				return err
			}
			defer svc.Stop()

			go func() {
				for evt := range svc.Events() {
					log.Info("事件", "type", evt.Type, "tab", string(evt.Tab), "url", evt.URL, "count", evt.Count)
				}
			}()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			<-sig
			return nil
		},
	}

	root.Flags().StringVarP(&cfgPath, "config", "c", "config.yaml", "配置文件路径")
	root.Flags().StringVarP(&target, "target", "t", "", "调试目标 ID，留空取第一个页面")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
