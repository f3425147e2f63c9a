package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"CANParse/base"
	"CANParse/can"
	"CANParse/canjson"
	"CANParse/rwmap"
	"CANParse/whitelist"

	"github.com/cockroachdb/errors"
	"github.com/eclipse/paho.golang/packets"
	"github.com/eclipse/paho.golang/paho"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
)

// udp recv buf
const BufSize = 8 * 1024

type RecvData struct {
	RecvTime int64
	Data     []byte
}

// Publisher is the part of *paho.Client the bridge uses.
type Publisher interface {
	Publish(ctx context.Context, p *paho.Publish) (*paho.PublishResponse, error)
}

// counters, logged on exit
var totalUdp, totalLoseUdp, totalFrame, totalBadUdp, totalPublishErr atomic.Int64

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Decode mirrored CAN datagrams from UDP and publish them to MQTT",
		Long: "Listen for mirrored-CAN UDP datagrams, decode whitelisted signals with the configured DBC " +
			"and publish JSON documents and raw frame lines to MQTT. SIGHUP reloads the DBC.",
		Args: cobra.NoArgs,
		Run:  runServe,
	}
	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	cfg, err := base.LoadConfig(configPath)
	if err != nil {
		exitErr("load config", err)
	}

	logFile, err := base.InitLog(cfg.LOG, os.Args[0])
	if err != nil {
		exitErr("init log", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	log.Debugln("Init log success !!!")

	if err := serve(cmd.Context(), cfg); err != nil {
		log.Errorln(err)
		exitErr("serve", err)
	}
}

func serve(ctx context.Context, cfg *base.Config) error {
	// Trap SIGINT to trigger a graceful shutdown.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	lib, err := loadLibrary(&cfg.DBC)
	if err != nil {
		return errors.Wrap(err, "load dbc")
	}
	library := rwmap.NewRWLibrary(lib)

	wl := whitelist.New(library, cfg.EnableWhiteList)
	if err := wl.LoadFromFile(cfg.WhiteListFile); err != nil {
		return err
	}

	client, err := initMQTT(ctx, &cfg.MQTT)
	if err != nil {
		return err
	}
	defer client.Disconnect(&paho.Disconnect{ReasonCode: 0})

	conn, err := listenUDP(ctx, cfg.UdpServer.Host)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go wl.AsyncSave(ctx, cfg.WhiteListFile, &wg)

	server := NewHttpServer(&cfg.HttpServer, wl)
	wg.Add(2)
	go func() {
		defer wg.Done()
		server.WaitExitSignal(ctx, shutdownTimeout)
	}()
	go func() {
		defer wg.Done()
		if err := server.ListenAndServe(); err != nil {
			log.Errorln(err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		watchReload(ctx, &cfg.DBC, library)
	}()

	b := newBridge(cfg, canjson.NewEncoder(library, wl), client)
	canDataChan := make(chan RecvData, cfg.DataChanSize)

	// handle udp frame
	var workers sync.WaitGroup
	for i := 0; i < cfg.WorkRoutines; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for data := range canDataChan {
				b.handleData(ctx, data)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	readData(conn, canDataChan)

	close(canDataChan)
	workers.Wait()
	wg.Wait()

	log.Infof("totalUdp(%d), totalLoseUdp(%d), totalBadUdp(%d), totalFrame(%d), totalPublishErr(%d)",
		totalUdp.Load(), totalLoseUdp.Load(), totalBadUdp.Load(), totalFrame.Load(), totalPublishErr.Load())
	return nil
}

// readData copies datagrams into out until conn is closed. A full channel
// drops the datagram.
func readData(conn net.PacketConn, out chan<- RecvData) {
	var readErrCnt int
	buf := make([]byte, BufSize)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				log.Debugln("udp listener closed")
				return
			}
			readErrCnt++
			// 防止日志撑爆硬盘
			if readErrCnt <= 10 {
				log.Errorln(err, addr)
			}
			continue
		}
		readErrCnt = 0
		totalUdp.Add(1)

		if n <= 0 {
			continue
		}

		recvData := RecvData{
			RecvTime: time.Now().UnixMicro(),
			Data:     make([]byte, n),
		}
		copy(recvData.Data, buf[:n])

		select {
		case out <- recvData:
		default:
			totalLoseUdp.Add(1)
		}
	}
}

func listenUDP(ctx context.Context, host string) (net.PacketConn, error) {
	cfg := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var serr error
			err := c.Control(func(fd uintptr) {
				if serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); serr != nil {
					return
				}
				serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
			if err != nil {
				return err
			}
			return serr
		},
	}

	conn, err := cfg.ListenPacket(ctx, "udp", host)
	if err != nil {
		return nil, errors.Wrapf(err, "listen %s", host)
	}
	log.Debugf("Open %s success !!!", conn.LocalAddr())
	return conn, nil
}

type bridge struct {
	encoder      *canjson.Encoder
	pub          Publisher
	whiteList    base.MQTTTopic
	nonWhiteList base.MQTTTopic
	bidirection  bool
	specialCANs  map[uint32]bool
}

func newBridge(cfg *base.Config, encoder *canjson.Encoder, pub Publisher) *bridge {
	b := &bridge{
		encoder:      encoder,
		pub:          pub,
		whiteList:    cfg.MQTT.WhiteList,
		nonWhiteList: cfg.MQTT.NonWhiteList,
		bidirection:  cfg.Bidirection,
		specialCANs:  make(map[uint32]bool, len(cfg.SpecialCANs)),
	}
	for _, canId := range cfg.SpecialCANs {
		b.specialCANs[canId] = true
	}
	return b
}

func (b *bridge) handleData(ctx context.Context, data RecvData) {
	pdus, err := can.ParsePDUs(data.Data, data.RecvTime)
	if err != nil {
		totalBadUdp.Add(1)
		log.Errorf("Invalid data !!! %v", err)
	}
	pdus = b.filterDirection(pdus)
	if len(pdus) <= 0 {
		return
	}
	totalFrame.Add(int64(len(pdus)))

	whiteListData, otherData := b.encoder.Encode(pdus)
	b.publish(ctx, &b.whiteList, whiteListData)
	b.publish(ctx, &b.nonWhiteList, otherData)
}

// filterDirection keeps received PDUs, and sent PDUs when bidirectional or
// listed in SpecialCANs. It filters in place.
func (b *bridge) filterDirection(pdus []can.PDU) []can.PDU {
	if b.bidirection {
		return pdus
	}

	out := pdus[:0]
	for _, pdu := range pdus {
		switch pdu.Direction {
		case can.SDPERecv:
			out = append(out, pdu)
		case can.SDPESend:
			if b.specialCANs[pdu.CanId] {
				out = append(out, pdu)
			}
		default:
			log.Errorf("Unknown direction !!! canId(%d), direction(%d)", pdu.CanId, pdu.Direction)
		}
	}
	return out
}

func (b *bridge) publish(ctx context.Context, topic *base.MQTTTopic, payload []byte) {
	if len(payload) <= 0 {
		log.Debugf("No data for %s", topic.Topic)
		return
	}

	if _, err := b.pub.Publish(ctx, &paho.Publish{
		Topic:   topic.Topic,
		QoS:     byte(topic.Qos),
		Retain:  topic.Retained,
		Payload: payload,
	}); err != nil {
		totalPublishErr.Add(1)
		log.Errorf("%s error sending message: %v", topic.Topic, err)
	}
}

func initMQTT(ctx context.Context, cfg *base.MQTT) (*paho.Client, error) {
	var d net.Dialer
	tcpConn, err := d.DialContext(ctx, "tcp", cfg.Broker)
	if err != nil {
		return nil, errors.Wrapf(err, "connect to %s", cfg.Broker)
	}
	log.Debugln("Success to connect to ", cfg.Broker)

	client := paho.NewClient(paho.ClientConfig{
		Conn: packets.NewThreadSafeConn(tcpConn),
	})

	cp := &paho.Connect{
		KeepAlive:    30,
		ClientID:     cfg.Clientid,
		CleanStart:   true,
		Username:     cfg.Username,
		Password:     []byte(cfg.Password),
		UsernameFlag: cfg.Username != "",
		PasswordFlag: cfg.Password != "",
	}

	ca, err := client.Connect(ctx, cp)
	if err != nil {
		return nil, errors.Wrapf(err, "mqtt connect %s", cfg.Broker)
	}
	if ca.ReasonCode != 0 {
		var reason string
		if ca.Properties != nil {
			reason = ca.Properties.ReasonString
		}
		return nil, errors.Newf("failed to connect to %s : %d - %s", cfg.Broker, ca.ReasonCode, reason)
	}

	log.Debugf("Connected to %s", cfg.Broker)
	return client, nil
}

// watchReload rebuilds the library on SIGHUP and swaps it in. A failed
// reload keeps the current library.
func watchReload(ctx context.Context, cfg *base.DBC, library *rwmap.RWLibrary) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			lib, err := loadLibrary(cfg)
			if err != nil {
				log.Errorf("Reload DBC failed, keep current: %v", err)
				continue
			}
			library.Swap(lib)
			log.Infof("Reload DBC success, %d messages", lib.Len())
		}
	}
}
