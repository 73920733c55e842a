package admin

import "github.com/Allen1211/msgp/msgp"

// StatusArgs/StatusReply back the admin surface's "list every known store
// with its firstBinlogId and replica count" call.
type StatusArgs struct{}

func (a *StatusArgs) EncodeMsg(w *msgp.Writer) error {
	return w.WriteMapHeader(0)
}

func (a *StatusArgs) DecodeMsg(r *msgp.Reader) error {
	n, err := r.ReadMapHeader()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		if _, err := r.ReadString(); err != nil {
			return err
		}
		if err := r.Skip(); err != nil {
			return err
		}
	}
	return nil
}

type StoreStatus struct {
	StoreId       uint32
	FirstBinlogId uint64
	ReplicaCount  int
}

type StatusReply struct {
	Stores []StoreStatus
}

func (r *StatusReply) EncodeMsg(w *msgp.Writer) error {
	if err := w.WriteMapHeader(1); err != nil {
		return err
	}
	if err := w.WriteString("stores"); err != nil {
		return err
	}
	if err := w.WriteArrayHeader(uint32(len(r.Stores))); err != nil {
		return err
	}
	for _, s := range r.Stores {
		if err := w.WriteArrayHeader(3); err != nil {
			return err
		}
		if err := w.WriteUint32(s.StoreId); err != nil {
			return err
		}
		if err := w.WriteUint64(s.FirstBinlogId); err != nil {
			return err
		}
		if err := w.WriteInt(s.ReplicaCount); err != nil {
			return err
		}
	}
	return nil
}

func (r *StatusReply) DecodeMsg(d *msgp.Reader) error {
	n, err := d.ReadMapHeader()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		field, err := d.ReadString()
		if err != nil {
			return err
		}
		switch field {
		case "stores":
			cnt, err := d.ReadArrayHeader()
			if err != nil {
				return err
			}
			r.Stores = make([]StoreStatus, cnt)
			for j := uint32(0); j < cnt; j++ {
				if _, err := d.ReadArrayHeader(); err != nil {
					return err
				}
				if r.Stores[j].StoreId, err = d.ReadUint32(); err != nil {
					return err
				}
				if r.Stores[j].FirstBinlogId, err = d.ReadUint64(); err != nil {
					return err
				}
				if r.Stores[j].ReplicaCount, err = d.ReadInt(); err != nil {
					return err
				}
			}
		default:
			if err := d.Skip(); err != nil {
				return err
			}
		}
	}
	return nil
}

// ListReplicasArgs/ListReplicasReply back "dump every MPov entry for one
// store", the admin surface's view onto repl.Manager.Snapshot.
type ListReplicasArgs struct {
	StoreId uint32
	// All, when true, ignores StoreId and returns every replica across
	// every store. Needed because storeId 0 is a valid id and can't
	// double as a sentinel for "unset".
	All bool
}

func (a *ListReplicasArgs) EncodeMsg(w *msgp.Writer) error {
	if err := w.WriteMapHeader(2); err != nil {
		return err
	}
	if err := w.WriteString("storeId"); err != nil {
		return err
	}
	if err := w.WriteUint32(a.StoreId); err != nil {
		return err
	}
	if err := w.WriteString("all"); err != nil {
		return err
	}
	return w.WriteBool(a.All)
}

func (a *ListReplicasArgs) DecodeMsg(r *msgp.Reader) error {
	n, err := r.ReadMapHeader()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		field, err := r.ReadString()
		if err != nil {
			return err
		}
		switch field {
		case "storeId":
			if a.StoreId, err = r.ReadUint32(); err != nil {
				return err
			}
		case "all":
			if a.All, err = r.ReadBool(); err != nil {
				return err
			}
		default:
			if err := r.Skip(); err != nil {
				return err
			}
		}
	}
	return nil
}

type ReplicaView struct {
	StoreId    uint32
	ClientId   uint64
	DstStoreId uint32
	BinlogPos  uint64
	Running    bool
	RemoteAddr string
}

type ListReplicasReply struct {
	Replicas []ReplicaView
}

func (r *ListReplicasReply) EncodeMsg(w *msgp.Writer) error {
	if err := w.WriteMapHeader(1); err != nil {
		return err
	}
	if err := w.WriteString("replicas"); err != nil {
		return err
	}
	if err := w.WriteArrayHeader(uint32(len(r.Replicas))); err != nil {
		return err
	}
	for _, rv := range r.Replicas {
		if err := w.WriteArrayHeader(6); err != nil {
			return err
		}
		if err := w.WriteUint32(rv.StoreId); err != nil {
			return err
		}
		if err := w.WriteUint64(rv.ClientId); err != nil {
			return err
		}
		if err := w.WriteUint32(rv.DstStoreId); err != nil {
			return err
		}
		if err := w.WriteUint64(rv.BinlogPos); err != nil {
			return err
		}
		if err := w.WriteBool(rv.Running); err != nil {
			return err
		}
		if err := w.WriteString(rv.RemoteAddr); err != nil {
			return err
		}
	}
	return nil
}

func (r *ListReplicasReply) DecodeMsg(d *msgp.Reader) error {
	n, err := d.ReadMapHeader()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		field, err := d.ReadString()
		if err != nil {
			return err
		}
		switch field {
		case "replicas":
			cnt, err := d.ReadArrayHeader()
			if err != nil {
				return err
			}
			r.Replicas = make([]ReplicaView, cnt)
			for j := uint32(0); j < cnt; j++ {
				if _, err := d.ReadArrayHeader(); err != nil {
					return err
				}
				rv := &r.Replicas[j]
				if rv.StoreId, err = d.ReadUint32(); err != nil {
					return err
				}
				if rv.ClientId, err = d.ReadUint64(); err != nil {
					return err
				}
				if rv.DstStoreId, err = d.ReadUint32(); err != nil {
					return err
				}
				if rv.BinlogPos, err = d.ReadUint64(); err != nil {
					return err
				}
				if rv.Running, err = d.ReadBool(); err != nil {
					return err
				}
				if rv.RemoteAddr, err = d.ReadString(); err != nil {
					return err
				}
			}
		default:
			if err := d.Skip(); err != nil {
				return err
			}
		}
	}
	return nil
}

// KickArgs/KickReply back "force-drop one replica's MPov entry", the
// admin surface's view onto repl.Manager.Kick.
type KickArgs struct {
	StoreId  uint32
	ClientId uint64
}

func (a *KickArgs) EncodeMsg(w *msgp.Writer) error {
	if err := w.WriteMapHeader(2); err != nil {
		return err
	}
	if err := w.WriteString("storeId"); err != nil {
		return err
	}
	if err := w.WriteUint32(a.StoreId); err != nil {
		return err
	}
	if err := w.WriteString("clientId"); err != nil {
		return err
	}
	return w.WriteUint64(a.ClientId)
}

func (a *KickArgs) DecodeMsg(r *msgp.Reader) error {
	n, err := r.ReadMapHeader()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		field, err := r.ReadString()
		if err != nil {
			return err
		}
		switch field {
		case "storeId":
			if a.StoreId, err = r.ReadUint32(); err != nil {
				return err
			}
		case "clientId":
			if a.ClientId, err = r.ReadUint64(); err != nil {
				return err
			}
		default:
			if err := r.Skip(); err != nil {
				return err
			}
		}
	}
	return nil
}

type KickReply struct {
	Ok bool
}

func (r *KickReply) EncodeMsg(w *msgp.Writer) error {
	if err := w.WriteMapHeader(1); err != nil {
		return err
	}
	if err := w.WriteString("ok"); err != nil {
		return err
	}
	return w.WriteBool(r.Ok)
}

func (r *KickReply) DecodeMsg(d *msgp.Reader) error {
	n, err := d.ReadMapHeader()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		field, err := d.ReadString()
		if err != nil {
			return err
		}
		switch field {
		case "ok":
			if r.Ok, err = d.ReadBool(); err != nil {
				return err
			}
		default:
			if err := d.Skip(); err != nil {
				return err
			}
		}
	}
	return nil
}
