package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/omeyang/apikit/pkg/context/xctx"
	"github.com/omeyang/apikit/pkg/observability/xlog"
	"github.com/omeyang/apikit/pkg/web/xauth"
)

// createTokenCommand 创建 token 命令组。
func createTokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "管理访问令牌",
		Commands: []*cli.Command{
			createTokenAddCommand(),
			createTokenRevokeCommand(),
		},
	}
}

// createTokenAddCommand 创建 token add 子命令。
func createTokenAddCommand() *cli.Command {
	return &cli.Command{
		Name:  "add",
		Usage: "签发新令牌并打印",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "name",
				Aliases: []string{"n"},
				Usage:   "主体名称",
			},
			&cli.StringFlag{
				Name:  "scopes",
				Usage: "逗号分隔的授权范围",
			},
			&cli.BoolFlag{
				Name:  "admin",
				Usage: "标记为管理员主体",
			},
			&cli.DurationFlag{
				Name:  "ttl",
				Usage: "有效期，0 表示永不过期",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cmdTokenAdd(ctx, cmd)
		},
	}
}

// createTokenRevokeCommand 创建 token revoke 子命令。
func createTokenRevokeCommand() *cli.Command {
	return &cli.Command{
		Name:      "revoke",
		Usage:     "吊销令牌",
		ArgsUsage: "<key>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cmdTokenRevoke(ctx, cmd)
		},
	}
}

// tokenStoreFor 按配置连接 Redis 并构建令牌存储。
// 一次性命令不做启动重试，连不上直接报错。
func tokenStoreFor(ctx context.Context, cmd *cli.Command) (*xauth.RedisTokenStore, func(), error) {
	cfg, err := loadConfig(cmd.String("config"), "")
	if err != nil {
		return nil, nil, err
	}
	client, err := connectRedis(ctx, cfg.Redis, xlog.Default(), 1)
	if err != nil {
		return nil, nil, err
	}
	store, err := xauth.NewRedisTokenStore(client)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return store, func() { _ = client.Close() }, nil
}

// cmdTokenAdd 签发令牌: 写入 Redis 并把令牌打印到标准输出。
func cmdTokenAdd(ctx context.Context, cmd *cli.Command) error {
	name := strings.TrimSpace(cmd.String("name"))
	if name == "" {
		return newUsageError("token add 需要指定 --name")
	}

	store, closeStore, err := tokenStoreFor(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	principal := &xctx.Principal{
		ID:     name,
		Name:   name,
		Scopes: splitScopes(cmd.String("scopes")),
		Admin:  cmd.Bool("admin"),
	}
	key := uuid.NewString()
	if err := store.Save(ctx, key, principal, cmd.Duration("ttl")); err != nil {
		return err
	}

	fmt.Fprintln(cmd.Root().Writer, key)
	return nil
}

// cmdTokenRevoke 吊销令牌，令牌不存在时也视为成功。
func cmdTokenRevoke(ctx context.Context, cmd *cli.Command) error {
	key := strings.TrimSpace(cmd.Args().First())
	if key == "" {
		return newUsageError("token revoke 需要指定要吊销的令牌")
	}

	store, closeStore, err := tokenStoreFor(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.Revoke(ctx, key); err != nil {
		return err
	}

	fmt.Fprintln(cmd.Root().Writer, "revoked")
	return nil
}

// splitScopes 解析逗号分隔的 scope 列表，忽略空段。
func splitScopes(s string) []string {
	var scopes []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			scopes = append(scopes, trimmed)
		}
	}
	return scopes
}
