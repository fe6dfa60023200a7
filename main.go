package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/fedcache/fedcache/internal/cache"
	"github.com/fedcache/fedcache/internal/config"
	"github.com/fedcache/fedcache/internal/logging"
	"github.com/fedcache/fedcache/internal/server"
	"github.com/fedcache/fedcache/internal/server/routes"
	"github.com/fedcache/fedcache/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	cacheDir    string
	checkOnly   bool
	showVersion bool
	serve       bool
	targets     []string
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.LoadOptional(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}
	if opts.cacheDir != "" {
		abs, err := filepath.Abs(opts.cacheDir)
		if err != nil {
			fmt.Fprintf(stdErr, "无法解析缓存目录: %v\n", err)
			return 1
		}
		cfg.Global.CacheDir = abs
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["datasets"] = config.DatasetNames(cfg.Datasets)
		fields["cache_dir"] = cfg.Global.CacheDir
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	httpClient := server.NewDownloadClient(cfg)
	cacheOpts := append(cfg.Global.CacheOptions(), cache.WithHTTPClient(httpClient), cache.WithLogger(logger))
	store := cache.New(cacheOpts...)

	if opts.serve {
		if err := startHTTPServer(cfg, store, logger, opts.configPath); err != nil {
			fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
			return 1
		}
		return 0
	}

	// 缺少目标与 flag 错误同属用法错误，退出码 2。
	if len(opts.targets) == 0 {
		fmt.Fprintln(stdErr, "用法: fedcache [-config path] [-cache-dir dir] <url|dataset>...")
		return 2
	}

	// 路径输出到 stdout，日志未指定文件时改走 stderr，避免混杂。
	if cfg.Global.LogFilePath == "" {
		logger.SetOutput(stdErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return fetchTargets(ctx, cfg, store, logger, opts.targets)
}

// fetchTargets 依次确保每个 URL 或数据集名称已缓存，并逐行打印本地路径。
func fetchTargets(ctx context.Context, cfg *config.Config, store *cache.Cache, logger *logrus.Logger, targets []string) int {
	code := 0
	for _, target := range targets {
		req, err := buildRequest(cfg, target)
		if err != nil {
			fmt.Fprintf(stdErr, "%s: %v\n", target, err)
			code = 1
			continue
		}

		entry, err := store.Ensure(ctx, req)
		if err != nil {
			fmt.Fprintf(stdErr, "%s: %v\n", target, err)
			code = 1
			if errors.Is(err, context.Canceled) {
				return code
			}
			continue
		}

		fields := logging.DownloadFields(entry.Source, entry.FilePath, entry.CacheHit)
		fields["action"] = "ensure_local"
		logger.WithFields(fields).Debug("dataset_ready")
		fmt.Fprintln(stdOut, entry.FilePath)
	}
	return code
}

// buildRequest 优先按配置中的数据集名称解析，否则视为 URL。
func buildRequest(cfg *config.Config, target string) (cache.Request, error) {
	req := cache.Request{
		CacheDir:    cfg.Global.CacheDir,
		VerifyOnHit: cfg.Global.VerifyOnHit,
	}
	if ds, ok := cfg.Dataset(target); ok {
		sum, err := ds.Checksum()
		if err != nil {
			return cache.Request{}, err
		}
		req.Source = ds.Source
		req.Expected = sum
		return req, nil
	}
	if !strings.Contains(target, "://") {
		return cache.Request{}, errors.New("未知数据集且不是 URL")
	}
	req.Source = target
	return req, nil
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("fedcache", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		cacheDir   string
		checkOnly  bool
		showVer    bool
		serve      bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 FEDCACHE_CONFIG 覆盖）")
	fs.StringVar(&cacheDir, "cache-dir", "", "缓存目录（默认 ~/.cache/<Namespace>）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")
	fs.BoolVar(&serve, "serve", false, "以 HTTP 服务方式按名称提供数据集")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("FEDCACHE_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = config.DefaultPath
	}

	return cliOptions{
		configPath:  path,
		cacheDir:    cacheDir,
		checkOnly:   checkOnly,
		showVersion: showVer,
		serve:       serve,
		targets:     fs.Args(),
	}, nil
}

func startHTTPServer(cfg *config.Config, store *cache.Cache, logger *logrus.Logger, configPath string) error {
	registry, err := server.NewDatasetRegistry(cfg)
	if err != nil {
		return err
	}

	handler := server.NewHandler(server.HandlerOptions{
		Cache:       store,
		CacheDir:    cfg.Global.CacheDir,
		VerifyOnHit: cfg.Global.VerifyOnHit,
		Logger:      logger,
	})

	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Registry:   registry,
		Handler:    handler,
		ListenPort: port,
	})
	if err != nil {
		return err
	}
	routes.RegisterDatasetRoutes(app, registry, handler)

	fields := logging.BaseFields("listen", configPath)
	fields["port"] = port
	fields["datasets"] = config.DatasetNames(cfg.Datasets)
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
