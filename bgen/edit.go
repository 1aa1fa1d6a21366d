// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bgen

import (
	"encoding/binary"
	"os"
)

// EditFreeData overwrites path's header free_data field in place at byte
// 20, requiring len(freeData) == the existing free_data length (spec
// §4.10 "edit-bgen -set-free-data": "require |new_value| == |existing_
// free_data|; overwrite in place at byte 20").
func EditFreeData(path string, freeData []byte) (err error) {
	v, err := Open(path)
	if err != nil {
		return err
	}
	c := v.Context()
	v.Close()
	if len(freeData) != len(c.FreeData) {
		return Errorf(KindInvalidVariantRecord, "-set-free-data value is %d bytes, existing free_data is %d bytes", len(freeData), len(c.FreeData))
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return Errorf(KindWriteFailed, "opening %s: %v", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err = f.WriteAt(freeData, headerFixedSize); err != nil {
		return Errorf(KindWriteFailed, "writing free_data at byte %d: %v", headerFixedSize, err)
	}
	return nil
}

// RemoveSampleIdentifiers clears the header's has_sample_identifiers flag
// bit and zeros the sample-identifier block's bytes in place, leaving the
// file's size and the offset field unchanged (spec §4.10
// "remove_sample_identifiers(file): if the sample-identifier flag is set,
// clear it in the flag word and zero out the range from header_size to
// offset in the file; otherwise no-op"). Subsequent opens of the file
// therefore report HasSampleIdentifiers == false and GetSampleIds as a
// no-op, without needing to reflow any variant data.
func RemoveSampleIdentifiers(path string) (err error) {
	v, err := Open(path)
	if err != nil {
		return err
	}
	c := v.Context()
	headerSize := int64(c.HeaderSize())
	dataStart := v.dataStart
	v.Close()
	if !c.HasSampleIdentifiers {
		return nil
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return Errorf(KindWriteFailed, "opening %s: %v", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	flagsOffset := headerSize // flags is the header's trailing u32, at file offset 4+headerSize-4
	newFlags := EncodeFlags(c.Compression, c.Layout, false)
	flagsBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(flagsBuf, uint32(newFlags))
	if _, err = f.WriteAt(flagsBuf, flagsOffset); err != nil {
		return Errorf(KindWriteFailed, "clearing sample-identifier flag: %v", err)
	}

	zeroLen := dataStart - (4 + headerSize)
	if zeroLen > 0 {
		zeros := make([]byte, zeroLen)
		if _, err = f.WriteAt(zeros, 4+headerSize); err != nil {
			return Errorf(KindWriteFailed, "zeroing sample-identifier block: %v", err)
		}
	}
	return nil
}
