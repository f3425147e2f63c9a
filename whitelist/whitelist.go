package whitelist

import (
	"context"
	"io"
	"net/http"
	"os"
	"strconv"
	"sync"

	"CANParse/base"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"
)

var (
	log  = base.Logger
	json = jsoniter.ConfigCompatibleWithStandardLibrary
)

const (
	OK uint = iota
	ReadBodyError
	ParseJsonError
	InvalidAction
	WrongHttpMethod
)

// Action
const (
	Do_ResetWith int = iota + 1
	Do_Add
	Do_Delete
)

// AllSignals in a request expands to every signal the library knows for
// the id.
const AllSignals = "*"

var WhiteListCode = map[uint]string{
	OK:              "OK",
	ReadBodyError:   "Read body error",
	ParseJsonError:  "Parse json error",
	InvalidAction:   "Invalid action",
	WrongHttpMethod: "Wrong http method, should use POST",
}

type WhiteListRsp struct {
	StatusCode uint   `json:"statusCode"`
	Reason     string `json:"reason"`
}

type WhiteListReq struct {
	TaskId    int                 `json:"taskId"`
	Action    int                 `json:"action"`
	CanList   map[string][]string `json:"canList"`
	TimeStamp string              `json:"timeStamp"`
}

type WhiteListMap map[uint32]map[string]bool

// Lookup resolves the signal names of a CAN id; rwmap.RWLibrary
// implements it.
type Lookup interface {
	SignalNames(id uint32) []string
}

type WhiteList struct {
	mu           sync.Mutex
	whiteListMap WhiteListMap
	enable       bool
	lookup       Lookup

	// pending save, coalesced
	saveC chan struct{}
}

func New(lookup Lookup, enable bool) *WhiteList {
	return &WhiteList{
		whiteListMap: make(WhiteListMap),
		enable:       enable,
		lookup:       lookup,
		saveC:        make(chan struct{}, 1),
	}
}

func (w *WhiteList) SetEnableFlag(enable bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.enable = enable
}

func (w *WhiteList) IsEnable() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enable
}

func (w *WhiteList) QueryByCanId(canId uint32) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	_, ok := w.whiteListMap[canId]
	return ok
}

func (w *WhiteList) QueryByCanIdAndSignal(canId uint32, signal string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if signals, ok := w.whiteListMap[canId]; ok {
		return signals[signal]
	}
	return false
}

func (w *WhiteList) ResetWith(req *WhiteListReq) {
	w.mu.Lock()
	defer w.mu.Unlock()
	// 重置清空map
	w.whiteListMap = WhiteListMap{}
	w.innerAdd(req)
}

func (w *WhiteList) Add(req *WhiteListReq) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.innerAdd(req)
}

func (w *WhiteList) innerAdd(req *WhiteListReq) {
	for strCanId, vSignals := range req.CanList {
		canId, vSignals, ok := w.expand(strCanId, vSignals)
		if !ok {
			continue
		}

		signals := w.whiteListMap[canId]
		if signals == nil {
			signals = make(map[string]bool)
			w.whiteListMap[canId] = signals
		}
		for _, signal := range vSignals {
			signals[signal] = true
		}
	}
}

func (w *WhiteList) Delete(req *WhiteListReq) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for strCanId, vSignals := range req.CanList {
		canId, vSignals, ok := w.expand(strCanId, vSignals)
		if !ok {
			continue
		}

		if signals, ok := w.whiteListMap[canId]; ok {
			// canId存在
			for _, signal := range vSignals {
				delete(signals, signal)
			}
			if len(signals) <= 0 {
				delete(w.whiteListMap, canId)
			}
		}
	}
}

// expand parses the id key of a request and resolves "*" through the
// library.
func (w *WhiteList) expand(strCanId string, vSignals []string) (uint32, []string, bool) {
	canId, err := strconv.ParseUint(strCanId, 10, 32)
	if err != nil {
		log.Errorln(err)
		return 0, nil, false
	}

	if len(vSignals) == 1 && vSignals[0] == AllSignals {
		var names []string
		if w.lookup != nil {
			names = w.lookup.SignalNames(uint32(canId))
		}
		if len(names) == 0 {
			log.Errorf("No dbc data !!! canId(%d)", canId)
			return 0, nil, false
		}
		return uint32(canId), names, true
	}
	return uint32(canId), vSignals, true
}

// ServeHTTP applies a WhiteListReq posted as JSON and schedules a save.
func (w *WhiteList) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rspByCode(rw, WrongHttpMethod, http.StatusMethodNotAllowed)
		return
	}

	all, err := io.ReadAll(r.Body)
	if err != nil {
		rspByCode(rw, ReadBodyError, http.StatusInternalServerError)
		return
	}

	req := WhiteListReq{}
	if err := json.Unmarshal(all, &req); err != nil {
		rspByCode(rw, ParseJsonError, http.StatusUnprocessableEntity)
		return
	}

	switch req.Action {
	case Do_ResetWith:
		w.ResetWith(&req)
	case Do_Add:
		w.Add(&req)
	case Do_Delete:
		w.Delete(&req)
	default:
		rspByCode(rw, InvalidAction, http.StatusUnprocessableEntity)
		return
	}

	w.requestSave()
	rspByCode(rw, OK, http.StatusOK)
}

func (w *WhiteList) requestSave() {
	select {
	case w.saveC <- struct{}{}:
	default:
	}
}

func rspByCode(w http.ResponseWriter, errCode uint, statusCode int) {
	rsp, _ := toJsonRsp(errCode)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(rsp)
}

func toJsonRsp(errCode uint) ([]byte, error) {
	rsp := &WhiteListRsp{errCode, WhiteListCode[errCode]}
	jData, err := json.Marshal(rsp)
	if err != nil {
		log.Errorln(err)
		return nil, err
	}

	jData = append(jData, '\n')
	return jData, nil
}

// LoadFromFile replaces the list with the contents of whiteListFile. A
// missing or empty file leaves the list empty.
func (w *WhiteList) LoadFromFile(whiteListFile string) error {
	if len(whiteListFile) <= 0 {
		return errors.New("WhiteList filename is empty")
	}

	data, err := os.ReadFile(whiteListFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "read %s", whiteListFile)
	}

	m := make(WhiteListMap)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &m); err != nil {
			return errors.Wrapf(err, "decode %s", whiteListFile)
		}
	}
	// "null" decodes to a nil map
	if m == nil {
		m = make(WhiteListMap)
	}

	w.mu.Lock()
	w.whiteListMap = m
	w.mu.Unlock()
	return nil
}

// SaveToFile writes the list as JSON.
func (w *WhiteList) SaveToFile(whiteListFile string) error {
	buf, err := w.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(whiteListFile, buf, 0o666); err != nil {
		return errors.Wrapf(err, "write %s", whiteListFile)
	}
	log.Debugf("Write (%s) ok! has written (%d) bytes", whiteListFile, len(buf))
	return nil
}

// AsyncSave writes the list to whiteListFile after every accepted HTTP
// update until ctx is done, then flushes a pending save.
func (w *WhiteList) AsyncSave(ctx context.Context, whiteListFile string, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case <-w.saveC:
			if err := w.SaveToFile(whiteListFile); err != nil {
				log.Errorln(err)
			}
		case <-ctx.Done():
			select {
			case <-w.saveC:
				if err := w.SaveToFile(whiteListFile); err != nil {
					log.Errorln(err)
				}
			default:
			}
			return
		}
	}
}

func (w *WhiteList) Marshal() ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return json.Marshal(w.whiteListMap)
}
